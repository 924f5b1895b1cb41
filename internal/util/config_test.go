package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStubUsers(t *testing.T) {
	users, err := ParseStubUsers("alice:alice123:ROLE_USER, admin:admin123:ROLE_ADMIN|ROLE_USER,")
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, StubUser{Username: "alice", Password: "alice123", Roles: []string{"ROLE_USER"}}, users[0])
	assert.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER"}, users[1].Roles)
}

func TestParseStubUsersRejectsMalformedEntry(t *testing.T) {
	_, err := ParseStubUsers("alice:alice123")
	require.Error(t, err)

	_, err = ParseStubUsers(":secret:ROLE_USER")
	require.Error(t, err)
}

func TestNewClientConfigDefaults(t *testing.T) {
	for _, name := range []string{"API_BASE_URL", "REQUEST_TIMEOUT", "LOGIN_PATH", "SESSION_STORE", "SESSION_PROFILE"} {
		t.Setenv(name, "")
	}

	cfg := NewClientConfig()
	assert.Equal(t, "http://localhost:8088/api/v1", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "/login", cfg.LoginPath)
	assert.Equal(t, "file", cfg.SessionStore)
	assert.Equal(t, "default", cfg.SessionProfile)
	assert.NotEmpty(t, cfg.SessionFile)
}

func TestNewClientConfigFromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/api/v1")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("REFRESH_TIMEOUT", "not-a-duration")
	t.Setenv("SESSION_STORE", "redis")

	cfg := NewClientConfig()
	assert.Equal(t, "https://api.example.com/api/v1", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, defaultRefreshTimeout, cfg.RefreshTimeout)
	assert.Equal(t, "redis", cfg.SessionStore)
}
