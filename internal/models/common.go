package models

//nolint:gosec //file not handles sensitive data
const (
	MwAPIKeyHeader        = "X-API-Key"
	MwAuthorizationHeader = "Authorization"
	MwRequestIDHeader     = "X-Request-ID"
	MwBearerPrefix        = "Bearer "
	MwTokenTypeBearer     = "Bearer"

	MwUserIDKey = "userID"
	MwClaimsKey = "claims"
	MwClientKey = "client_id"
)

// Default navigation targets taken by the UI after session transitions.
const (
	LoginPath          = "/login"
	HomePath           = "/"
	AdminDashboardPath = "/admin/dashboard"
)
