package service

import (
	"context"

	"github.com/rryowa/dangbai_session/internal/models"
)

type SessionStore interface {
	Save(ctx context.Context, sess models.Session) error
	Clear(ctx context.Context) error
	User() (models.User, bool)
	IsAuthenticated() bool
	HasRole(role models.Role) bool
	IsAdmin() bool
}
