package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/storage"
)

type SessionBackend struct {
	mu      sync.RWMutex
	entries storage.Entries
	log     *zap.SugaredLogger
}

func NewSessionBackend(log *zap.SugaredLogger) *SessionBackend {
	return &SessionBackend{
		entries: storage.Entries{},
		log:     log,
	}
}

func (m *SessionBackend) Load(_ context.Context) (storage.Entries, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.entries.Clone(), nil
}

func (m *SessionBackend) Replace(_ context.Context, entries storage.Entries) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = entries.Clone()
	m.log.Debugw("Session entries replaced", "keys", len(entries))

	return nil
}

func (m *SessionBackend) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = storage.Entries{}
	m.log.Debugw("Session entries cleared")

	return nil
}
