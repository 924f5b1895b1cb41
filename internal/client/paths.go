package client

const (
	PathLogin        = "/auth/login"
	PathRegister     = "/auth/register"
	PathRefreshToken = "/auth/refresh-token"
	PathLogout       = "/auth/logout"
	PathLogoutAll    = "/auth/logout-all"
	PathMe           = "/auth/me"

	PathFilterPosts    = "/posts/filter"
	PathAdminDashboard = "/admin/dashboard"
)
