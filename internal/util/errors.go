package util

import (
	"fmt"
	"net/http"
)

// MyResponseError is rendered by the HTTP error handler as an envelope with
// its status and message.
type MyResponseError struct {
	Msg    string
	Status int
	Cause  error
}

func (e MyResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e MyResponseError) Unwrap() error { return e.Cause }

func NewResponseError(status int, format string, args ...interface{}) error {
	return MyResponseError{
		Msg:    fmt.Sprintf(format, args...),
		Status: status,
	}
}

// WrapResponseError keeps cause for logging; clients only see msg.
func WrapResponseError(status int, cause error, msg string) error {
	return MyResponseError{Msg: msg, Status: status, Cause: cause}
}

func Unauthorized(msg string) error {
	return MyResponseError{Msg: msg, Status: http.StatusUnauthorized}
}

func Forbidden(msg string) error {
	return MyResponseError{Msg: msg, Status: http.StatusForbidden}
}

func BadRequest(msg string) error {
	return MyResponseError{Msg: msg, Status: http.StatusBadRequest}
}
