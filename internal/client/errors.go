package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

type Category string

const (
	CategoryUnauthorized Category = "unauthorized"
	CategoryForbidden    Category = "forbidden"
	CategoryNotFound     Category = "not_found"
	CategoryValidation   Category = "validation"
	CategoryClient       Category = "client"
	CategoryServer       Category = "server"
	CategoryTransport    Category = "transport"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrClient       = errors.New("request rejected")
	ErrServer       = errors.New("server error")
	ErrTransport    = errors.New("transport failure")
)

var categorySentinels = map[Category]error{
	CategoryUnauthorized: ErrUnauthorized,
	CategoryForbidden:    ErrForbidden,
	CategoryNotFound:     ErrNotFound,
	CategoryValidation:   ErrValidation,
	CategoryClient:       ErrClient,
	CategoryServer:       ErrServer,
	CategoryTransport:    ErrTransport,
}

var displayMessages = map[Category]string{
	CategoryUnauthorized: "Your session has expired. Please sign in again.",
	CategoryForbidden:    "You do not have permission to access this resource.",
	CategoryNotFound:     "Resource not found.",
	CategoryServer:       "Server error. Please try again later.",
	CategoryTransport:    "Could not reach the server. Please try again.",
}

const defaultDisplayMessage = "Something went wrong. Please try again."

// APIError is the typed failure of a backend call. Status is zero for
// transport failures.
type APIError struct {
	Status   int
	Code     int
	Message  string
	Path     string
	Category Category
	Timeout  bool
	Cause    error
}

func (e *APIError) Error() string {
	if e.Category == CategoryTransport {
		if e.Cause != nil {
			return fmt.Sprintf("transport: %v", e.Cause)
		}
		return "transport failure"
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Category, e.Status, msg, e.Cause)
	}
	return fmt.Sprintf("%s (%d): %s", e.Category, e.Status, msg)
}

func (e *APIError) Is(target error) bool {
	return categorySentinels[e.Category] == target
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// DisplayMessage is the text a UI shows for this failure.
func (e *APIError) DisplayMessage() string {
	if msg, ok := displayMessages[e.Category]; ok {
		return msg
	}
	if e.Message != "" {
		return e.Message
	}
	return defaultDisplayMessage
}

func Classify(status int) Category {
	switch {
	case status == http.StatusUnauthorized:
		return CategoryUnauthorized
	case status == http.StatusForbidden:
		return CategoryForbidden
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status == http.StatusBadRequest,
		status == http.StatusConflict,
		status == http.StatusUnprocessableEntity:
		return CategoryValidation
	case status >= http.StatusInternalServerError:
		return CategoryServer
	default:
		return CategoryClient
	}
}

func transportError(err error) *APIError {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	return &APIError{
		Category: CategoryTransport,
		Timeout:  timeout,
		Cause:    err,
	}
}

func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
