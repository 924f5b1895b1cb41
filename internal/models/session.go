package models

import "slices"

type Role string

const (
	RoleUser     Role = "ROLE_USER"
	RoleAdmin    Role = "ROLE_ADMIN"
	RoleEmployee Role = "ROLE_EMPLOYEE"
)

type User struct {
	UserID      int64    `json:"userId"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
	AvatarURL   string   `json:"avatarUrl,omitempty"`
}

func (u User) HasRole(role Role) bool {
	return slices.Contains(u.Roles, string(role))
}

// IsZero reports a user with neither id nor username, as sent by responses
// that omit the profile.
func (u User) IsZero() bool {
	return u.UserID == 0 && u.Username == ""
}

func (u User) Clone() User {
	u.Roles = append([]string(nil), u.Roles...)
	return u
}

// Session is the authenticated state of one client. Tokens are either both
// set or both empty.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         User
}

func (s Session) Complete() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}
