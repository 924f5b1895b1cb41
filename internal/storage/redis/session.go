package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/dangbai_session/internal/storage"
)

const defaultPrefix = "dangbai:session:"

// SessionBackend keeps the three session entries as plain string keys under
// a per-profile prefix.
type SessionBackend struct {
	client *redis.Client
	prefix string
}

func NewSessionBackend(client *redis.Client, profile string) *SessionBackend {
	prefix := defaultPrefix
	if profile != "" {
		prefix += profile + ":"
	}
	return &SessionBackend{client: client, prefix: prefix}
}

func (s *SessionBackend) key(name string) string {
	return s.prefix + name
}

func (s *SessionBackend) keys() []string {
	keys := make([]string, 0, len(storage.SessionKeys))
	for _, k := range storage.SessionKeys {
		keys = append(keys, s.key(k))
	}
	return keys
}

// Load reads all entries with a single MGET so the snapshot is consistent.
func (s *SessionBackend) Load(ctx context.Context) (storage.Entries, error) {
	values, err := s.client.MGet(ctx, s.keys()...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget session: %w: %w", storage.ErrUnavailable, err)
	}

	entries := storage.Entries{}
	for i, v := range values {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("key %s: %w", storage.SessionKeys[i], storage.ErrCorrupt)
		}
		entries[storage.SessionKeys[i]] = str
	}
	return entries, nil
}

func (s *SessionBackend) Replace(ctx context.Context, entries storage.Entries) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keys()...)
		for _, k := range storage.SessionKeys {
			if v, ok := entries[k]; ok {
				pipe.Set(ctx, s.key(k), v, 0)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace session: %w: %w", storage.ErrUnavailable, err)
	}
	return nil
}

func (s *SessionBackend) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.keys()...).Err(); err != nil {
		return fmt.Errorf("clear session: %w: %w", storage.ErrUnavailable, err)
	}
	return nil
}
