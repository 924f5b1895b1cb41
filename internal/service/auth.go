package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/client"
	"github.com/rryowa/dangbai_session/internal/events"
	"github.com/rryowa/dangbai_session/internal/models"
)

var ErrIncompleteAuthResponse = errors.New("auth response is missing tokens or user")

// AuthService is the session surface the UI talks to.
type AuthService struct {
	dispatcher *client.Dispatcher
	store      SessionStore
	publisher  events.Publisher
	loginPath  string
	log        *zap.SugaredLogger
}

func NewAuthService(dispatcher *client.Dispatcher, store SessionStore, publisher events.Publisher, loginPath string, log *zap.SugaredLogger) *AuthService {
	if loginPath == "" {
		loginPath = models.LoginPath
	}
	return &AuthService{
		dispatcher: dispatcher,
		store:      store,
		publisher:  publisher,
		loginPath:  loginPath,
		log:        log,
	}
}

// LandingPath is where a freshly signed-in user is sent.
func LandingPath(user models.User) string {
	if user.HasRole(models.RoleAdmin) {
		return models.AdminDashboardPath
	}
	return models.HomePath
}

func (s *AuthService) Login(ctx context.Context, username, password string) (models.User, error) {
	resp, err := client.Call[models.AuthResponse](ctx, s.dispatcher, client.Request{
		Method:   http.MethodPost,
		Path:     client.PathLogin,
		JSON:     models.LoginRequest{Username: username, Password: password},
		SkipAuth: true,
	})
	if err != nil {
		return models.User{}, fmt.Errorf("login: %w", err)
	}
	return s.start(ctx, resp)
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	resp, err := client.Call[models.AuthResponse](ctx, s.dispatcher, client.Request{
		Method:   http.MethodPost,
		Path:     client.PathRegister,
		JSON:     req,
		SkipAuth: true,
	})
	if err != nil {
		return models.User{}, fmt.Errorf("register: %w", err)
	}
	return s.start(ctx, resp)
}

func (s *AuthService) start(ctx context.Context, resp models.AuthResponse) (models.User, error) {
	sess := resp.Session()
	if !sess.Complete() || sess.User.IsZero() {
		return models.User{}, ErrIncompleteAuthResponse
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return models.User{}, fmt.Errorf("save session: %w", err)
	}

	s.log.Infow("Signed in", "user_id", sess.User.UserID, "username", sess.User.Username)
	s.publish(ctx, events.Event{
		Kind:       events.KindStarted,
		UserID:     sess.User.UserID,
		Username:   sess.User.Username,
		RedirectTo: LandingPath(sess.User),
	})
	return sess.User.Clone(), nil
}

// Logout tells the backend the session is over and clears it locally. The
// local session is cleared even when the backend cannot be reached.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.end(ctx, client.PathLogout)
}

// LogoutAll also revokes the user's sessions on other devices.
func (s *AuthService) LogoutAll(ctx context.Context) error {
	return s.end(ctx, client.PathLogoutAll)
}

func (s *AuthService) end(ctx context.Context, path string) error {
	user, _ := s.store.User()

	if s.store.IsAuthenticated() {
		resp, err := s.dispatcher.Do(ctx, client.Request{
			Method:    http.MethodPost,
			Path:      path,
			NoRefresh: true,
		})
		if err != nil {
			s.log.Warnw("Backend logout failed, clearing local session anyway", "path", path, "error", err)
		} else {
			resp.Body.Close()
		}
	}

	clearErr := s.store.Clear(ctx)
	if clearErr != nil {
		s.log.Errorw("Failed to remove persisted session", "error", clearErr)
	}

	s.log.Infow("Signed out", "user_id", user.UserID)
	s.publish(ctx, events.Event{
		Kind:       events.KindEnded,
		UserID:     user.UserID,
		Username:   user.Username,
		RedirectTo: s.loginPath,
	})

	if clearErr != nil {
		return fmt.Errorf("clear session: %w", clearErr)
	}
	return nil
}

func (s *AuthService) CurrentUser() (models.User, bool) {
	return s.store.User()
}

func (s *AuthService) IsAuthenticated() bool {
	return s.store.IsAuthenticated()
}

func (s *AuthService) IsAdmin() bool {
	return s.store.IsAdmin()
}

func (s *AuthService) HasRole(role models.Role) bool {
	return s.store.HasRole(role)
}

func (s *AuthService) publish(ctx context.Context, e events.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, e)
	}
}
