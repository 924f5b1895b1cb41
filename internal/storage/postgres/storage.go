package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rryowa/dangbai_session/internal/storage"
)

// Storage is the postgres session backend. One profile maps to one client
// device; every profile owns at most three rows.
type Storage struct {
	db      *sql.DB
	profile string
	*SessionRepository
}

func NewStorage(db *sql.DB, profile string) *Storage {
	if profile == "" {
		profile = "default"
	}
	return &Storage{
		db:                db,
		profile:           profile,
		SessionRepository: NewSessionRepository(db, profile),
	}
}

func (s *Storage) Load(ctx context.Context) (storage.Entries, error) {
	entries, err := s.LoadEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return entries, nil
}

// Replace выполняет замену всех записей сессии в одной транзакции.
func (s *Storage) Replace(ctx context.Context, entries storage.Entries) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	repoTx := NewSessionRepository(tx, s.profile)
	if err := repoTx.DeleteEntries(ctx); err != nil {
		return fmt.Errorf("failed to delete entries in tx: %w", err)
	}
	for _, k := range storage.SessionKeys {
		v, ok := entries[k]
		if !ok {
			continue
		}
		if err := repoTx.InsertEntry(ctx, k, v); err != nil {
			return fmt.Errorf("failed to insert entry in tx: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Storage) Clear(ctx context.Context) error {
	return s.DeleteEntries(ctx)
}
