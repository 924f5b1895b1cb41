package util

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8088"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	defaultAPIBaseURL     = "http://localhost:8088/api/v1"
	defaultRequestTimeout = 10 * time.Second
	defaultRefreshTimeout = 10 * time.Second
	defaultLoginPath      = "/login"
	defaultSessionStore   = "file"
	defaultSessionProfile = "default"
	sessionFileName       = "session.json"

	defaultStubUsers = "alice:alice123:ROLE_USER,admin:admin123:ROLE_ADMIN|ROLE_USER"

	TokenPartsExpected = 2
	RawTokenLength     = 32
	JWTLeeWay          = 5 * time.Second
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	// APIKey, when set, is required on every request.
	APIKey string
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
		APIKey:          os.Getenv("AUTH_SERVICE_API_KEY"),
	}
}

type TokenConfig struct {
	JwtSecretKey []byte
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

func NewTokenConfig() *TokenConfig {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	return &TokenConfig{
		JwtSecretKey: []byte(secret),
		AccessTTL:    parseDurationOrDefault("ACCESS_TOKEN_TTL", defaultAccessTTL),
		RefreshTTL:   parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
	}
}

type ClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	RefreshTimeout time.Duration
	APIKey         string
	LoginPath      string
	SessionStore   string
	SessionFile    string
	SessionProfile string
	WebhookURL     string
}

func NewClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        getenvOrDefault("API_BASE_URL", defaultAPIBaseURL),
		RequestTimeout: parseDurationOrDefault("REQUEST_TIMEOUT", defaultRequestTimeout),
		RefreshTimeout: parseDurationOrDefault("REFRESH_TIMEOUT", defaultRefreshTimeout),
		APIKey:         os.Getenv("API_KEY"),
		LoginPath:      getenvOrDefault("LOGIN_PATH", defaultLoginPath),
		SessionStore:   getenvOrDefault("SESSION_STORE", defaultSessionStore),
		SessionFile:    getenvOrDefault("SESSION_FILE", defaultSessionFile()),
		SessionProfile: getenvOrDefault("SESSION_PROFILE", defaultSessionProfile),
		WebhookURL:     os.Getenv("SESSION_WEBHOOK_URL"),
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return sessionFileName
	}
	return filepath.Join(dir, "dangbai", sessionFileName)
}

type StubUser struct {
	Username string
	Password string
	Roles    []string
}

// NewStubUsers parses STUB_USERS, a comma separated list of
// username:password:ROLE_A|ROLE_B entries.
func NewStubUsers() ([]StubUser, error) {
	return ParseStubUsers(getenvOrDefault("STUB_USERS", defaultStubUsers))
}

func ParseStubUsers(raw string) ([]StubUser, error) {
	var users []StubUser
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid stub user %q", entry)
		}
		users = append(users, StubUser{
			Username: parts[0],
			Password: parts[1],
			Roles:    strings.Split(parts[2], "|"),
		})
	}
	return users, nil
}

func getenvOrDefault(varName, def string) string {
	if v := os.Getenv(varName); v != "" {
		return v
	}
	return def
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}
