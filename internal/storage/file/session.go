package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rryowa/dangbai_session/internal/storage"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// SessionBackend stores the session entries as one JSON object on disk.
// Writes go to a temp file that is renamed over the target, so a reader
// sees either the old or the new document.
type SessionBackend struct {
	mu   sync.Mutex
	path string
}

func NewSessionBackend(path string) *SessionBackend {
	return &SessionBackend{path: path}
}

func (b *SessionBackend) Path() string {
	return b.path
}

func (b *SessionBackend) Load(_ context.Context) (storage.Entries, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.Entries{}, nil
		}
		return nil, fmt.Errorf("read %s: %w: %w", b.path, storage.ErrUnavailable, err)
	}
	if len(data) == 0 {
		return storage.Entries{}, nil
	}

	entries := storage.Entries{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", b.path, storage.ErrCorrupt, err)
	}
	return entries, nil
}

func (b *SessionBackend) Replace(_ context.Context, entries storage.Entries) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return b.writeAtomic(data)
}

func (b *SessionBackend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", b.path, err)
	}
	return nil
}

func (b *SessionBackend) writeAtomic(data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
