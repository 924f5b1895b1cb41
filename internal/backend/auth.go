package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/models"
)

// ClientMeta describes the device a refresh session was issued to.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

type AuthService struct {
	users    *UserDirectory
	tokens   *TokenService
	sessions RefreshSessionStore
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewAuthService(users *UserDirectory, tokens *TokenService, sessions RefreshSessionStore, log *zap.SugaredLogger) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest, meta ClientMeta) (models.AuthResponse, error) {
	user, err := s.users.Authenticate(req.Username, req.Password)
	if err != nil {
		return models.AuthResponse{}, err
	}
	s.log.Infow("User logged in", "user_id", user.UserID, "ip", meta.IPAddress)
	return s.issue(ctx, user, meta)
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, meta ClientMeta) (models.AuthResponse, error) {
	user, err := s.users.Register(req)
	if err != nil {
		return models.AuthResponse{}, err
	}
	s.log.Infow("User registered", "user_id", user.UserID, "username", user.Username)
	return s.issue(ctx, user, meta)
}

// Refresh rotates the token pair. The presented refresh token is consumed
// whether or not the exchange succeeds.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (models.AuthResponse, error) {
	selector, verifier, err := SplitRefreshToken(refreshToken)
	if err != nil {
		return models.AuthResponse{}, err
	}

	session, err := s.sessions.Take(ctx, selector)
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("take refresh session: %w", err)
	}
	if session == nil {
		return models.AuthResponse{}, ErrRefreshTokenInvalid
	}
	if err := VerifyRefreshToken(verifier, session.VerifierHash); err != nil {
		return models.AuthResponse{}, err
	}
	if s.now().After(session.ExpiresAt) {
		return models.AuthResponse{}, ErrRefreshTokenExpired
	}

	user, err := s.users.Get(session.UserID)
	if err != nil {
		return models.AuthResponse{}, err
	}

	if meta.IPAddress != "" && meta.IPAddress != session.IPAddress {
		s.log.Warnw("Refresh from a different address", "user_id", user.UserID, "old_ip", session.IPAddress, "new_ip", meta.IPAddress)
	}
	s.log.Debugw("Refresh token rotated", "user_id", user.UserID)
	return s.issue(ctx, user, meta)
}

// Logout revokes the access token and the refresh session it belongs to.
func (s *AuthService) Logout(ctx context.Context, claims *AccessClaims) error {
	if err := s.tokens.RevokeAccessToken(ctx, claims); err != nil {
		return err
	}
	if claims.SessionID != "" {
		if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
			return fmt.Errorf("delete refresh session: %w", err)
		}
	}
	return nil
}

// LogoutAll also ends every other refresh session of the user.
func (s *AuthService) LogoutAll(ctx context.Context, claims *AccessClaims) error {
	userID, err := claims.UserIDInt()
	if err != nil {
		return err
	}
	if err := s.tokens.RevokeAccessToken(ctx, claims); err != nil {
		return err
	}
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("delete refresh sessions: %w", err)
	}
	return nil
}

func (s *AuthService) Me(_ context.Context, claims *AccessClaims) (models.User, error) {
	userID, err := claims.UserIDInt()
	if err != nil {
		return models.User{}, err
	}
	user, err := s.users.Get(userID)
	if errors.Is(err, ErrUserNotFound) {
		return models.User{}, ErrTokenInvalid
	}
	return user, err
}

func (s *AuthService) issue(ctx context.Context, user models.User, meta ClientMeta) (models.AuthResponse, error) {
	now := s.now()

	refreshToken, selector, verifierHash, err := s.tokens.CreateRefreshToken()
	if err != nil {
		return models.AuthResponse{}, err
	}
	err = s.sessions.Create(ctx, RefreshSession{
		Selector:     selector,
		VerifierHash: verifierHash,
		UserID:       user.UserID,
		UserAgent:    meta.UserAgent,
		IPAddress:    meta.IPAddress,
		ExpiresAt:    now.Add(s.tokens.RefreshTTL()),
		CreatedAt:    now,
	})
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("create refresh session: %w", err)
	}

	accessToken, err := s.tokens.CreateAccessToken(user, selector, now)
	if err != nil {
		return models.AuthResponse{}, err
	}

	return models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    models.MwTokenTypeBearer,
		UserID:       user.UserID,
		Username:     user.Username,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Roles:        user.Roles,
	}, nil
}
