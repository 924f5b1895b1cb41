package controller

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
)

//go:embed openapi/openapi.yaml
var openapiDoc []byte

func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromData(openapiDoc)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := swagger.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return swagger, nil
}

// RouteGuards protect the authenticated and admin-only routes.
type RouteGuards struct {
	Authenticated echo.MiddlewareFunc
	Admin         echo.MiddlewareFunc
}

func RegisterHandlers(g *echo.Group, c *Controller, guards RouteGuards) {
	g.GET("/ping", c.CheckServer)

	g.POST("/auth/login", c.Login)
	g.POST("/auth/register", c.Register)
	g.POST("/auth/refresh-token", c.RefreshToken)

	g.POST("/auth/logout", c.Logout, guards.Authenticated)
	g.POST("/auth/logout-all", c.LogoutAll, guards.Authenticated)
	g.GET("/auth/me", c.Me, guards.Authenticated)
	g.GET("/posts/filter", c.FilterPosts, guards.Authenticated)

	g.GET("/admin/dashboard", c.AdminDashboard, guards.Authenticated, guards.Admin)
}
