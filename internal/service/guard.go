package service

import "github.com/rryowa/dangbai_session/internal/models"

type Requirement int

const (
	RequireAuthenticated Requirement = iota
	RequireAdmin
)

type Decision struct {
	Allowed    bool
	RedirectTo string
	Reason     string
}

type roleChecker interface {
	IsAuthenticated() bool
	IsAdmin() bool
}

// Guard decides whether a protected view may be shown.
type Guard struct {
	session   roleChecker
	loginPath string
}

func NewGuard(session roleChecker, loginPath string) *Guard {
	if loginPath == "" {
		loginPath = models.LoginPath
	}
	return &Guard{session: session, loginPath: loginPath}
}

func (g *Guard) Check(req Requirement) Decision {
	if !g.session.IsAuthenticated() {
		return Decision{RedirectTo: g.loginPath, Reason: "unauthenticated"}
	}
	if req == RequireAdmin && !g.session.IsAdmin() {
		return Decision{RedirectTo: models.HomePath, Reason: "forbidden"}
	}
	return Decision{Allowed: true}
}
