package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/models"
	"github.com/rryowa/dangbai_session/internal/storage"
)

var ErrPartialSession = errors.New("session requires access token, refresh token and user")

// Store owns the current session. Reads are served from an in-memory
// snapshot; every mutation writes through to the backend first and then
// replaces the snapshot as a whole.
//
// Each mutation advances a generation counter. SaveIf and ClearIf only
// apply when the generation a caller observed is still current, which lets
// a long-running refresh detect that the user logged out in the meantime.
type Store struct {
	backend storage.Backend
	log     *zap.SugaredLogger

	writeMu sync.Mutex

	mu         sync.RWMutex
	current    *models.Session
	generation uint64
}

func NewStore(ctx context.Context, backend storage.Backend, log *zap.SugaredLogger) (*Store, error) {
	s := &Store{backend: backend, log: log}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the snapshot with what the backend holds. Unreadable or
// partial state loads as signed out.
func (s *Store) Reload(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entries, err := s.backend.Load(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrCorrupt) {
			return fmt.Errorf("load session: %w", err)
		}
		s.log.Warnw("Persisted session is unreadable, treating as signed out", "error", err)
		s.commit(nil)
		return nil
	}

	sess, err := decodeEntries(entries)
	if err != nil {
		s.log.Warnw("Persisted session is invalid, treating as signed out", "error", err)
		s.commit(nil)
		return nil
	}
	s.commit(sess)
	return nil
}

func (s *Store) Save(ctx context.Context, sess models.Session) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.saveLocked(ctx, sess)
}

// SaveIf saves only when no other mutation happened since generation gen.
func (s *Store) SaveIf(ctx context.Context, gen uint64, sess models.Session) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.Generation() != gen {
		return false, nil
	}
	if err := s.saveLocked(ctx, sess); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes the session. The snapshot is dropped even when the backend
// delete fails; the failure is still returned.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.clearLocked(ctx)
}

func (s *Store) ClearIf(ctx context.Context, gen uint64) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.Generation() != gen {
		return false, nil
	}
	return true, s.clearLocked(ctx)
}

func (s *Store) saveLocked(ctx context.Context, sess models.Session) error {
	if !sess.Complete() {
		return ErrPartialSession
	}
	sess.User = sess.User.Clone()

	entries, err := encodeEntries(sess)
	if err != nil {
		return err
	}
	if err := s.backend.Replace(ctx, entries); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.commit(&sess)
	return nil
}

func (s *Store) clearLocked(ctx context.Context) error {
	err := s.backend.Clear(ctx)
	s.commit(nil)
	if err != nil {
		s.log.Errorw("Failed to clear persisted session", "error", err)
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) commit(sess *models.Session) {
	s.mu.Lock()
	s.current = sess
	s.generation++
	s.mu.Unlock()
}

func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Snapshot returns the whole session together with the generation it
// belongs to.
func (s *Store) Snapshot() (models.Session, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return models.Session{}, s.generation, false
	}
	sess := *s.current
	sess.User = sess.User.Clone()
	return sess, s.generation, true
}

func (s *Store) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return "", false
	}
	return s.current.AccessToken, true
}

func (s *Store) RefreshToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return "", false
	}
	return s.current.RefreshToken, true
}

func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return models.User{}, false
	}
	return s.current.User.Clone(), true
}

// IsAuthenticated reports token presence only; validity is decided by the
// backend on use.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.AccessToken()
	return ok
}

func (s *Store) HasRole(role models.Role) bool {
	user, ok := s.User()
	return ok && user.HasRole(role)
}

func (s *Store) IsAdmin() bool {
	return s.HasRole(models.RoleAdmin)
}
