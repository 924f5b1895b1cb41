package storage

import (
	"context"
	"database/sql"
	"errors"
)

// Keys of the persisted session entries. All three are written and cleared
// together.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

var (
	ErrCorrupt     = errors.New("persisted session is corrupt")
	ErrUnavailable = errors.New("session backend unavailable")
)

// Entries is a snapshot of the persisted keys. A missing key is absent.
type Entries map[string]string

func (e Entries) Clone() Entries {
	out := make(Entries, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Backend persists the session entries of a single client profile.
type Backend interface {
	// Load returns every persisted entry in one consistent read.
	Load(ctx context.Context) (Entries, error)
	// Replace swaps the whole entry set atomically; keys absent from
	// entries are removed.
	Replace(ctx context.Context, entries Entries) error
	// Clear removes all entries. Clearing an empty backend is not an error.
	Clear(ctx context.Context) error
}

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
