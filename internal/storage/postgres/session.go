package postgres

import (
	"context"
	"fmt"

	"github.com/rryowa/dangbai_session/internal/storage"
)

type SessionRepository struct {
	db      storage.DBTX
	profile string
}

func NewSessionRepository(db storage.DBTX, profile string) *SessionRepository {
	return &SessionRepository{db: db, profile: profile}
}

func (r *SessionRepository) LoadEntries(ctx context.Context) (storage.Entries, error) {
	query := `SELECT key, value FROM session_entries WHERE profile = $1`
	rows, err := r.db.QueryContext(ctx, query, r.profile)
	if err != nil {
		return nil, fmt.Errorf("failed to query session entries: %w", err)
	}
	defer rows.Close()

	entries := storage.Entries{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan session entry: %w", err)
		}
		entries[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session entries: %w", err)
	}
	return entries, nil
}

func (r *SessionRepository) InsertEntry(ctx context.Context, key, value string) error {
	query := `INSERT INTO session_entries (profile, key, value, updated_at) VALUES ($1, $2, $3, now())`
	if _, err := r.db.ExecContext(ctx, query, r.profile, key, value); err != nil {
		return fmt.Errorf("failed to insert session entry %s: %w", key, err)
	}
	return nil
}

func (r *SessionRepository) DeleteEntries(ctx context.Context) error {
	query := `DELETE FROM session_entries WHERE profile = $1`
	if _, err := r.db.ExecContext(ctx, query, r.profile); err != nil {
		return fmt.Errorf("failed to delete session entries: %w", err)
	}
	return nil
}
