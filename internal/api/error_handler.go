package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/backend"
	"github.com/rryowa/dangbai_session/internal/models"
	"github.com/rryowa/dangbai_session/internal/util"
)

type errorCode struct {
	code    int
	status  int
	message string
}

// Application codes follow the marketplace backend's error catalog.
var (
	codeInternal           = errorCode{1000, http.StatusInternalServerError, "Internal server error"}
	codeInvalidCredentials = errorCode{3000, http.StatusUnauthorized, "Invalid username or password"}
	codeTokenExpired       = errorCode{3004, http.StatusUnauthorized, "Token has expired"}
	codeTokenInvalid       = errorCode{3005, http.StatusUnauthorized, "Invalid token"}
	codeRefreshExpired     = errorCode{3006, http.StatusUnauthorized, "Refresh token has expired"}
	codeRefreshInvalid     = errorCode{3007, http.StatusUnauthorized, "Invalid refresh token"}
	codeUserNotFound       = errorCode{5000, http.StatusNotFound, "User not found"}
	codeEmailExists        = errorCode{5002, http.StatusConflict, "Email already exists"}
	codeUsernameExists     = errorCode{5003, http.StatusConflict, "Username already exists"}
)

func classify(err error) (errorCode, bool) {
	switch {
	case errors.Is(err, backend.ErrInvalidCredentials):
		return codeInvalidCredentials, true
	case errors.Is(err, backend.ErrTokenExpired):
		return codeTokenExpired, true
	case errors.Is(err, backend.ErrTokenInvalid),
		errors.Is(err, backend.ErrTokenRevoked),
		errors.Is(err, backend.ErrTokenMalformed),
		errors.Is(err, backend.ErrInvalidUserID):
		return codeTokenInvalid, true
	case errors.Is(err, backend.ErrRefreshTokenExpired):
		return codeRefreshExpired, true
	case errors.Is(err, backend.ErrRefreshTokenInvalid):
		return codeRefreshInvalid, true
	case errors.Is(err, backend.ErrUserNotFound):
		return codeUserNotFound, true
	case errors.Is(err, backend.ErrEmailExists):
		return codeEmailExists, true
	case errors.Is(err, backend.ErrUserExists):
		return codeUsernameExists, true
	}

	var respErr util.MyResponseError
	if errors.As(err, &respErr) {
		return errorCode{respErr.Status, respErr.Status, respErr.Msg}, true
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return errorCode{he.Code, he.Code, fmt.Sprint(he.Message)}, true
	}

	return codeInternal, false
}

// ErrorHandler renders every failure as the standard response envelope.
func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		ec, known := classify(err)
		if !known || ec.status >= http.StatusInternalServerError {
			log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
		}

		body := models.APIResponse[any]{
			Code:      ec.code,
			Status:    ec.status,
			Message:   ec.message,
			Timestamp: time.Now().UnixMilli(),
			Path:      c.Request().URL.Path,
		}
		if err := c.JSON(ec.status, body); err != nil {
			log.Errorw("failed to write json response", "error", err)
		}
	}
}
