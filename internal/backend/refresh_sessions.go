package backend

import (
	"context"
	"sync"
	"time"
)

// RefreshSession is the server side half of a refresh token.
type RefreshSession struct {
	Selector     string
	VerifierHash string
	UserID       int64
	UserAgent    string
	IPAddress    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

type RefreshSessionStore interface {
	Create(ctx context.Context, s RefreshSession) error
	// Take removes and returns the session, so a refresh token works once.
	Take(ctx context.Context, selector string) (*RefreshSession, error)
	Delete(ctx context.Context, selector string) error
	DeleteAllForUser(ctx context.Context, userID int64) error
}

type InMemoryRefreshSessions struct {
	mu       sync.Mutex
	sessions map[string]RefreshSession
}

func NewInMemoryRefreshSessions() *InMemoryRefreshSessions {
	return &InMemoryRefreshSessions{
		sessions: make(map[string]RefreshSession),
	}
}

func (m *InMemoryRefreshSessions) Create(_ context.Context, s RefreshSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.Selector] = s
	return nil
}

func (m *InMemoryRefreshSessions) Take(_ context.Context, selector string) (*RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[selector]
	if !ok {
		return nil, nil
	}
	delete(m.sessions, selector)
	return &s, nil
}

func (m *InMemoryRefreshSessions) Delete(_ context.Context, selector string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, selector)
	return nil
}

func (m *InMemoryRefreshSessions) DeleteAllForUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, k)
		}
	}
	return nil
}
