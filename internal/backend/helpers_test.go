package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/dangbai_session/internal/util"
)

const testSecret = "test-secret-key-for-hs512-signing"

func newTestTokens(revoked RevocationList) *TokenService {
	return NewTokenService(&util.TokenConfig{
		JwtSecretKey: []byte(testSecret),
		AccessTTL:    time.Minute,
		RefreshTTL:   time.Hour,
	}, revoked)
}

func newTestUsers(t *testing.T) *UserDirectory {
	t.Helper()
	users, err := NewUserDirectory([]util.StubUser{
		{Username: "alice", Password: "alice123", Roles: []string{"ROLE_USER"}},
		{Username: "admin", Password: "admin123", Roles: []string{"ROLE_ADMIN", "ROLE_USER"}},
	}, bcrypt.MinCost)
	require.NoError(t, err)
	return users
}

func newTestAuth(t *testing.T) (*AuthService, *InMemoryRefreshSessions) {
	t.Helper()
	sessions := NewInMemoryRefreshSessions()
	return NewAuthService(newTestUsers(t), newTestTokens(NewMemoryRevocationList()), sessions, zap.NewNop().Sugar()), sessions
}

func (m *InMemoryRefreshSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
