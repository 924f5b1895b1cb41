package session

import (
	"encoding/json"
	"fmt"

	"github.com/rryowa/dangbai_session/internal/models"
	"github.com/rryowa/dangbai_session/internal/storage"
)

func encodeEntries(s models.Session) (storage.Entries, error) {
	user, err := json.Marshal(s.User)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	return storage.Entries{
		storage.KeyAccessToken:  s.AccessToken,
		storage.KeyRefreshToken: s.RefreshToken,
		storage.KeyUser:         string(user),
	}, nil
}

// decodeEntries returns nil for an empty entry set and an error for a
// partial or unreadable one.
func decodeEntries(e storage.Entries) (*models.Session, error) {
	if len(e) == 0 {
		return nil, nil
	}

	access := e[storage.KeyAccessToken]
	refresh := e[storage.KeyRefreshToken]
	rawUser := e[storage.KeyUser]
	if access == "" || refresh == "" || rawUser == "" {
		return nil, fmt.Errorf("%w: %d of %d keys present", ErrPartialSession, len(e), len(storage.SessionKeys))
	}

	var user models.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, fmt.Errorf("decode user: %w: %w", storage.ErrCorrupt, err)
	}

	return &models.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	}, nil
}
