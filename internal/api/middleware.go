package api

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/backend"
	"github.com/rryowa/dangbai_session/internal/metrics"
	"github.com/rryowa/dangbai_session/internal/models"
	"github.com/rryowa/dangbai_session/internal/util"
)

// APIKeyAuthMiddleware проверяет наличие и валидность API ключа в заголовке X-API-Key.
// Без верификатора пропускает все запросы.
func APIKeyAuthMiddleware(verifier backend.APIKeyVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if verifier == nil {
			return next
		}
		return func(c echo.Context) error {
			apiKey := c.Request().Header.Get(models.MwAPIKeyHeader)
			if apiKey == "" {
				return util.Unauthorized("API key is missing")
			}

			ok, err := verifier.IsValidAPIKey(c.Request().Context(), apiKey)
			if err != nil {
				return err
			}
			if !ok {
				return util.Unauthorized("Invalid API key")
			}
			return next(c)
		}
	}
}

// BearerAuthMiddleware parses the access token and stores its claims in the
// echo context under models.MwClaimsKey.
func BearerAuthMiddleware(tokens *backend.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(models.MwAuthorizationHeader)
			token, ok := strings.CutPrefix(header, models.MwBearerPrefix)
			if !ok || token == "" {
				return util.Unauthorized("Unauthorized - Please login")
			}

			claims, err := tokens.ParseAccessToken(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(models.MwClaimsKey, claims)
			c.Set(models.MwUserIDKey, claims.UserID)
			return next(c)
		}
	}
}

func RequireRoleMiddleware(role models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(models.MwClaimsKey).(*backend.AccessClaims)
			if !ok || !claims.HasRole(role) {
				return util.Forbidden("Forbidden - You don't have permission")
			}
			return next(c)
		}
	}
}

func GetLoggerMiddlewareConfig(a *API) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogError:     true,
		LogRequestID: true,
		LogLatency:   true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			metrics.HTTPRequests.WithLabelValues(v.Method, c.Path(), strconv.Itoa(v.Status)).Inc()

			fields := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"request_id", v.RequestID,
				"latency", v.Latency,
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				a.log.Warnw("Request", fields...)
			} else {
				a.log.Infow("Request", fields...)
			}
			return nil
		},
	}
}
