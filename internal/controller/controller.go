package controller

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/backend"
	"github.com/rryowa/dangbai_session/internal/models"
	"github.com/rryowa/dangbai_session/internal/util"
)

type Controller struct {
	zapLogger   *zap.SugaredLogger
	authService *backend.AuthService
	posts       *backend.PostCatalog
	now         func() time.Time
}

func NewController(logger *zap.SugaredLogger, authService *backend.AuthService, posts *backend.PostCatalog) *Controller {
	return &Controller{
		zapLogger:   logger,
		authService: authService,
		posts:       posts,
		now:         time.Now,
	}
}

// (GET /api/v1/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return c.ok(ctx, http.StatusOK, "pong", nil)
}

// (POST /api/v1/auth/login).
func (c *Controller) Login(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return util.WrapResponseError(http.StatusBadRequest, err, "Invalid request")
	}

	resp, err := c.authService.Login(ctx.Request().Context(), req, clientMeta(ctx))
	if err != nil {
		return err
	}
	return c.ok(ctx, http.StatusOK, "Login successful", resp)
}

// (POST /api/v1/auth/register).
func (c *Controller) Register(ctx echo.Context) error {
	var req models.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return util.WrapResponseError(http.StatusBadRequest, err, "Invalid request")
	}

	resp, err := c.authService.Register(ctx.Request().Context(), req, clientMeta(ctx))
	if err != nil {
		return err
	}
	return c.ok(ctx, http.StatusCreated, "Registration successful", resp)
}

// (POST /api/v1/auth/refresh-token).
func (c *Controller) RefreshToken(ctx echo.Context) error {
	var req models.RefreshTokenRequest
	if err := ctx.Bind(&req); err != nil {
		return util.WrapResponseError(http.StatusBadRequest, err, "Invalid request")
	}

	resp, err := c.authService.Refresh(ctx.Request().Context(), req.RefreshToken, clientMeta(ctx))
	if err != nil {
		return err
	}
	return c.ok(ctx, http.StatusOK, "Token refreshed", resp)
}

// (POST /api/v1/auth/logout).
func (c *Controller) Logout(ctx echo.Context) error {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return err
	}
	if err := c.authService.Logout(ctx.Request().Context(), claims); err != nil {
		return err
	}
	return c.ok(ctx, http.StatusOK, "Logout successful", nil)
}

// (POST /api/v1/auth/logout-all).
func (c *Controller) LogoutAll(ctx echo.Context) error {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return err
	}
	if err := c.authService.LogoutAll(ctx.Request().Context(), claims); err != nil {
		return err
	}
	return c.ok(ctx, http.StatusOK, "Logged out from all devices", nil)
}

// (GET /api/v1/auth/me).
func (c *Controller) Me(ctx echo.Context) error {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return err
	}
	user, err := c.authService.Me(ctx.Request().Context(), claims)
	if err != nil {
		return err
	}
	return c.ok(ctx, http.StatusOK, "Success", user)
}

// (GET /api/v1/admin/dashboard).
func (c *Controller) AdminDashboard(ctx echo.Context) error {
	return c.ok(ctx, http.StatusOK, "Success", c.posts.Stats())
}

func (c *Controller) ok(ctx echo.Context, status int, message string, data any) error {
	return ctx.JSON(status, models.APIResponse[any]{
		Code:      0,
		Status:    status,
		Message:   message,
		Data:      data,
		Timestamp: c.now().UnixMilli(),
	})
}

func clientMeta(ctx echo.Context) backend.ClientMeta {
	return backend.ClientMeta{
		UserAgent: ctx.Request().UserAgent(),
		IPAddress: ctx.RealIP(),
	}
}

func claimsFrom(ctx echo.Context) (*backend.AccessClaims, error) {
	claims, ok := ctx.Get(models.MwClaimsKey).(*backend.AccessClaims)
	if !ok || claims == nil {
		return nil, backend.ErrTokenInvalid
	}
	return claims, nil
}
