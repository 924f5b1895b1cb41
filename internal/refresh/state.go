package refresh

import "errors"

var (
	ErrNoRefreshToken = errors.New("no refresh token")
	ErrExchangeFailed = errors.New("refresh token exchange failed")
	// ErrSessionEnded means the session was replaced or cleared while the
	// exchange was in flight; its result was discarded.
	ErrSessionEnded = errors.New("session ended during refresh")
)

type State int32

const (
	StateStart State = iota
	StateExchanging
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateExchanging:
		return "exchanging"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
