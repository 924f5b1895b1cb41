package refresh_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/events"
	"github.com/rryowa/dangbai_session/internal/models"
	"github.com/rryowa/dangbai_session/internal/refresh"
	"github.com/rryowa/dangbai_session/internal/session"
	"github.com/rryowa/dangbai_session/internal/storage/memory"
)

type fakeExchanger struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	resp    models.AuthResponse
	err     error
}

func (f *fakeExchanger) Exchange(ctx context.Context, refreshToken string) (models.AuthResponse, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.resp, f.err
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func alice() models.User {
	return models.User{UserID: 1, Username: "alice", Roles: []string{string(models.RoleUser)}}
}

func rotated() models.AuthResponse {
	return models.AuthResponse{AccessToken: "A2", RefreshToken: "R2", UserID: 1, Username: "alice", Roles: []string{"ROLE_USER"}}
}

func newStore(t *testing.T, sess *models.Session) *session.Store {
	t.Helper()
	log := zap.NewNop().Sugar()
	store, err := session.NewStore(context.Background(), memory.NewSessionBackend(log), log)
	require.NoError(t, err)
	if sess != nil {
		require.NoError(t, store.Save(context.Background(), *sess))
	}
	return store
}

func newRefresher(store *session.Store, ex refresh.Exchanger, pub events.Publisher) *refresh.Refresher {
	return refresh.NewRefresher(store, ex, pub, refresh.Config{}, zap.NewNop().Sugar())
}

func TestRefreshRotatesBothTokens(t *testing.T) {
	store := newStore(t, &models.Session{AccessToken: "A1", RefreshToken: "R1", User: alice()})
	ex := &fakeExchanger{resp: rotated()}
	rec := &recorder{}
	r := newRefresher(store, ex, rec)

	token, err := r.Refresh(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "A2", token)

	sess, _, ok := store.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "A2", sess.AccessToken)
	assert.Equal(t, "R2", sess.RefreshToken)
	assert.Equal(t, "alice", sess.User.Username)
	assert.Equal(t, int32(1), ex.calls.Load())
	assert.Equal(t, refresh.StateSucceeded, r.State())
	assert.Equal(t, []events.Kind{events.KindRefreshed}, rec.kinds())
}

func TestRefreshKeepsUserWhenResponseOmitsIt(t *testing.T) {
	store := newStore(t, &models.Session{AccessToken: "A1", RefreshToken: "R1", User: alice()})
	ex := &fakeExchanger{resp: models.AuthResponse{AccessToken: "A2", RefreshToken: "R2"}}
	r := newRefresher(store, ex, nil)

	_, err := r.Refresh(context.Background(), "A1")
	require.NoError(t, err)

	user, ok := store.User()
	require.True(t, ok)
	assert.Equal(t, alice(), user)
}

func TestRefreshWithoutSessionFailsWithoutExchange(t *testing.T) {
	store := newStore(t, nil)
	ex := &fakeExchanger{resp: rotated()}
	rec := &recorder{}
	r := newRefresher(store, ex, rec)

	_, err := r.Refresh(context.Background(), "")
	require.ErrorIs(t, err, refresh.ErrNoRefreshToken)
	assert.Zero(t, ex.calls.Load())
	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, refresh.StateFailed, r.State())
	assert.Empty(t, rec.kinds())
}

func TestLateRefreshesAfterFailureAnnounceExpiryOnce(t *testing.T) {
	store := newStore(t, &models.Session{AccessToken: "A1", RefreshToken: "R1", User: alice()})
	ex := &fakeExchanger{err: errors.New("refresh token revoked")}
	rec := &recorder{}
	r := newRefresher(store, ex, rec)

	_, err := r.Refresh(context.Background(), "A1")
	require.ErrorIs(t, err, refresh.ErrExchangeFailed)

	for range 3 {
		_, err := r.Refresh(context.Background(), "A1")
		require.ErrorIs(t, err, refresh.ErrNoRefreshToken)
	}

	assert.Equal(t, int32(1), ex.calls.Load())
	assert.Equal(t, []events.Kind{events.KindExpired}, rec.kinds())
	assert.False(t, store.IsAuthenticated())
}

func TestRefreshFailureClearsSession(t *testing.T) {
	store := newStore(t, &models.Session{AccessToken: "A1", RefreshToken: "R1", User: alice()})
	ex := &fakeExchanger{err: errors.New("401 from refresh-token")}
	rec := &recorder{}
	r := refresh.NewRefresher(store, ex, rec, refresh.Config{LoginPath: "/signin"}, zap.NewNop().Sugar())

	_, err := r.Refresh(context.Background(), "A1")
	require.ErrorIs(t, err, refresh.ErrExchangeFailed)
	assert.Equal(t, int32(1), ex.calls.Load())
	assert.False(t, store.IsAuthenticated())

	require.Len(t, rec.events, 1)
	assert.Equal(t, events.KindExpired, rec.events[0].Kind)
	assert.Equal(t, "/signin", rec.events[0].RedirectTo)
}

func TestRefreshRejectsResponseWithoutTokens(t *testing.T) {
	store := newStore(t, &models.Session{AccessToken: "A1", RefreshToken: "R1", User: alice()})
	ex := &fakeExchanger{resp: models.AuthResponse{AccessToken: "A2"}}
	r := newRefresher(store, ex, nil)

	_, err := r.Refresh(context.Background(), "A1")
	require.ErrorIs(t, err, refresh.ErrExchangeFailed)
	assert.False(t, store.IsAuthenticated())
}

func TestRefreshReturnsAlreadyRotatedToken(t *testing.T) {
	store := newStore(t, &models.Session{AccessToken: "A2", RefreshToken: "R2", User: alice()})
	ex := &fakeExchanger{resp: rotated()}
	r := newRefresher(store, ex, nil)

	token, err := r.Refresh(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "A2", token)
	assert.Zero(t, ex.calls.Load())
}

func TestConcurrentRefreshesShareOneExchange(t *testing.T) {
	store := newStore(t, &models.Session{AccessToken: "A1", RefreshToken: "R1", User: alice()})
	ex := &fakeExchanger{resp: rotated(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	r := newRefresher(store, ex, nil)

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = r.Refresh(context.Background(), "A1")
		}(i)
	}

	<-ex.entered
	close(ex.release)
	wg.Wait()

	assert.Equal(t, int32(1), ex.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "A2", tokens[i])
	}
}

func TestCallerCancellationDoesNotAbortSharedExchange(t *testing.T) {
	store := newStore(t, &models.Session{AccessToken: "A1", RefreshToken: "R1", User: alice()})
	ex := &fakeExchanger{resp: rotated(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	r := newRefresher(store, ex, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Refresh(ctx, "A1")
		done <- err
	}()

	<-ex.entered
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(ex.release)
	require.Eventually(t, func() bool {
		token, ok := store.AccessToken()
		return ok && token == "A2"
	}, timeout, tick)
}

func TestLogoutDuringRefreshDiscardsResult(t *testing.T) {
	store := newStore(t, &models.Session{AccessToken: "A1", RefreshToken: "R1", User: alice()})
	ex := &fakeExchanger{resp: rotated(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	rec := &recorder{}
	r := newRefresher(store, ex, rec)

	done := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background(), "A1")
		done <- err
	}()

	<-ex.entered
	require.NoError(t, store.Clear(context.Background()))
	close(ex.release)

	require.ErrorIs(t, <-done, refresh.ErrSessionEnded)
	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, rec.kinds())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "start", refresh.StateStart.String())
	assert.Equal(t, "exchanging", refresh.StateExchanging.String())
	assert.Equal(t, "succeeded", refresh.StateSucceeded.String())
	assert.Equal(t, "failed", refresh.StateFailed.String())
	assert.Equal(t, "unknown", refresh.State(42).String())
}

const (
	timeout = time.Second
	tick    = 10 * time.Millisecond
)
