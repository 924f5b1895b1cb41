package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rryowa/dangbai_session/internal/events"
	"github.com/rryowa/dangbai_session/internal/metrics"
	"github.com/rryowa/dangbai_session/internal/models"
)

const (
	flightKey      = "refresh"
	defaultTimeout = 10 * time.Second
)

type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (models.AuthResponse, error)
}

type SessionStore interface {
	Snapshot() (models.Session, uint64, bool)
	SaveIf(ctx context.Context, gen uint64, sess models.Session) (bool, error)
	ClearIf(ctx context.Context, gen uint64) (bool, error)
}

type Config struct {
	// Timeout bounds one exchange, independent of the callers waiting on it.
	Timeout time.Duration
	// LoginPath is the redirect target published when the session expires.
	LoginPath string
}

// Refresher swaps a rejected access token for a new one. Concurrent callers
// share a single exchange.
type Refresher struct {
	store     SessionStore
	exchanger Exchanger
	publisher events.Publisher
	cfg       Config
	log       *zap.SugaredLogger

	group singleflight.Group
	state atomic.Int32
}

func NewRefresher(store SessionStore, exchanger Exchanger, publisher events.Publisher, cfg Config, log *zap.SugaredLogger) *Refresher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = models.LoginPath
	}
	return &Refresher{
		store:     store,
		exchanger: exchanger,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// State reports the phase of the most recent refresh.
func (r *Refresher) State() State {
	return State(r.state.Load())
}

// Refresh returns an access token newer than staleAccessToken, exchanging
// the refresh token if nobody has done so yet. On failure a live session is
// cleared and a session.expired event is published once; callers that find
// the store already empty get ErrNoRefreshToken without another event.
func (r *Refresher) Refresh(ctx context.Context, staleAccessToken string) (string, error) {
	if token, ok := r.rotatedSince(staleAccessToken); ok {
		metrics.RefreshJoined.Inc()
		return token, nil
	}

	leader := false
	ch := r.group.DoChan(flightKey, func() (any, error) {
		leader = true
		return r.run(context.WithoutCancel(ctx), staleAccessToken)
	})

	select {
	case res := <-ch:
		if !leader {
			metrics.RefreshJoined.Inc()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Refresher) rotatedSince(stale string) (string, bool) {
	sess, _, ok := r.store.Snapshot()
	if !ok || sess.AccessToken == stale {
		return "", false
	}
	return sess.AccessToken, true
}

func (r *Refresher) run(ctx context.Context, stale string) (string, error) {
	r.state.Store(int32(StateStart))

	sess, gen, ok := r.store.Snapshot()
	if ok && sess.AccessToken != stale {
		// Rotated by a flight that finished just before this one started.
		r.state.Store(int32(StateSucceeded))
		return sess.AccessToken, nil
	}
	if !ok {
		// Already signed out; the expiry that cleared the store was announced.
		metrics.RefreshExchanges.WithLabelValues("no_token").Inc()
		r.state.Store(int32(StateFailed))
		return "", ErrNoRefreshToken
	}
	if sess.RefreshToken == "" {
		metrics.RefreshExchanges.WithLabelValues("no_token").Inc()
		return "", r.fail(ctx, gen, ErrNoRefreshToken)
	}

	r.state.Store(int32(StateExchanging))
	exchangeCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	r.log.Debugw("Exchanging refresh token", "user_id", sess.User.UserID)
	resp, err := r.exchanger.Exchange(exchangeCtx, sess.RefreshToken)
	if err == nil && (resp.AccessToken == "" || resp.RefreshToken == "") {
		err = errors.New("response is missing tokens")
	}
	if err != nil {
		metrics.RefreshExchanges.WithLabelValues("failure").Inc()
		return "", r.fail(ctx, gen, fmt.Errorf("%w: %w", ErrExchangeFailed, err))
	}

	next := resp.Session()
	if next.User.IsZero() {
		next.User = sess.User
	}

	saved, err := r.store.SaveIf(ctx, gen, next)
	if err != nil {
		metrics.RefreshExchanges.WithLabelValues("failure").Inc()
		return "", r.fail(ctx, gen, fmt.Errorf("%w: save session: %w", ErrExchangeFailed, err))
	}
	if !saved {
		metrics.RefreshExchanges.WithLabelValues("discarded").Inc()
		r.state.Store(int32(StateFailed))
		r.log.Infow("Discarding refreshed tokens, session changed during exchange", "user_id", sess.User.UserID)
		return "", ErrSessionEnded
	}

	metrics.RefreshExchanges.WithLabelValues("success").Inc()
	r.state.Store(int32(StateSucceeded))
	r.log.Infow("Session refreshed", "user_id", next.User.UserID)
	r.publish(ctx, events.Event{
		Kind:     events.KindRefreshed,
		UserID:   next.User.UserID,
		Username: next.User.Username,
	})
	return next.AccessToken, nil
}

func (r *Refresher) fail(ctx context.Context, gen uint64, cause error) error {
	r.state.Store(int32(StateFailed))

	cleared, err := r.store.ClearIf(ctx, gen)
	if err != nil {
		r.log.Warnw("Failed to remove persisted session", "error", err)
	}
	if !cleared {
		return ErrSessionEnded
	}

	r.log.Infow("Session expired", "reason", cause)
	r.publish(ctx, events.Event{
		Kind:       events.KindExpired,
		RedirectTo: r.cfg.LoginPath,
		Reason:     cause.Error(),
	})
	return cause
}

func (r *Refresher) publish(ctx context.Context, e events.Event) {
	if r.publisher != nil {
		r.publisher.Publish(ctx, e)
	}
}
