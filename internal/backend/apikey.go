package backend

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	CurrentAPIKeyRedisKey      = "apikey:current"
	OldAPIKeyRedisKey          = "apikey:old"
	APIKeyRotationTimeRedisKey = "apikey:rotation_time"

	apiKeyGracePeriod = 24 * time.Hour
)

var ErrEmptyAPIKey = errors.New("api key is empty")

type APIKeyVerifier interface {
	IsValidAPIKey(ctx context.Context, key string) (bool, error)
}

// StaticAPIKey accepts exactly one key.
type StaticAPIKey struct {
	hash string
}

func NewStaticAPIKey(key string) *StaticAPIKey {
	return &StaticAPIKey{hash: hashAPIKey(key)}
}

func (s *StaticAPIKey) IsValidAPIKey(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	return sameHash(hashAPIKey(key), s.hash), nil
}

// RedisAPIKeyService keeps the key hash in Redis. After a rotation the
// previous key stays valid for apiKeyGracePeriod.
type RedisAPIKeyService struct {
	rdb *redis.Client
	log *zap.SugaredLogger
	now func() time.Time
}

func NewRedisAPIKeyService(rdb *redis.Client, log *zap.SugaredLogger) *RedisAPIKeyService {
	return &RedisAPIKeyService{rdb: rdb, log: log, now: time.Now}
}

// SyncAPIKey makes key the current one, demoting the previous key.
func (s *RedisAPIKeyService) SyncAPIKey(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyAPIKey
	}
	hashedNewKey := hashAPIKey(key)

	currentHashedKey, err := s.rdb.Get(ctx, CurrentAPIKeyRedisKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.log.Info("Current API key not found during sync; initializing.")
			return s.setInitialAPIKey(ctx, hashedNewKey)
		}
		return fmt.Errorf("failed to get current API key from Redis: %w", err)
	}

	if sameHash(hashedNewKey, currentHashedKey) {
		s.log.Debug("Skipping key sync: new key is the same as the current one.")
		return nil
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, OldAPIKeyRedisKey, currentHashedKey, apiKeyGracePeriod)
	pipe.Set(ctx, CurrentAPIKeyRedisKey, hashedNewKey, 0)
	pipe.Set(ctx, APIKeyRotationTimeRedisKey, s.now().UTC().Format(time.RFC3339), 0)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to sync API key in Redis: %w", err)
	}

	s.log.Info("API Key rotated.")
	return nil
}

func (s *RedisAPIKeyService) IsValidAPIKey(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	hashedKey := hashAPIKey(key)

	currentHashedKey, err := s.rdb.Get(ctx, CurrentAPIKeyRedisKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to get current API key from Redis: %w", err)
	}
	if sameHash(hashedKey, currentHashedKey) {
		return true, nil
	}

	oldHashedKey, err := s.rdb.Get(ctx, OldAPIKeyRedisKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to get old API key from Redis: %w", err)
	}
	if oldHashedKey == "" || !sameHash(hashedKey, oldHashedKey) {
		return false, nil
	}

	rotationTimeStr, err := s.rdb.Get(ctx, APIKeyRotationTimeRedisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to get key rotation time from Redis: %w", err)
	}
	rotationTime, err := time.Parse(time.RFC3339, rotationTimeStr)
	if err != nil {
		return false, fmt.Errorf("failed to parse key rotation time: %w", err)
	}

	return s.now().Sub(rotationTime) <= apiKeyGracePeriod, nil
}

func (s *RedisAPIKeyService) setInitialAPIKey(ctx context.Context, hashedKey string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, CurrentAPIKeyRedisKey, hashedKey, 0)
	pipe.Set(ctx, APIKeyRotationTimeRedisKey, s.now().UTC().Format(time.RFC3339), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("init API key: %w", err)
	}
	s.log.Info("API Key initialized in Redis.")
	return nil
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func sameHash(a, b string) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
