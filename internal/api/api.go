package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	middleware "github.com/oapi-codegen/echo-middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/backend"
	"github.com/rryowa/dangbai_session/internal/controller"
	"github.com/rryowa/dangbai_session/internal/models"
	"github.com/rryowa/dangbai_session/internal/util"
)

const (
	shutdownTimeout = 5 * time.Second
	basePath        = "/api/v1"
)

type API struct {
	server          *echo.Echo
	controller      *controller.Controller
	tokens          *backend.TokenService
	apiKeys         backend.APIKeyVerifier
	gatherer        prometheus.Gatherer
	log             *zap.SugaredLogger
	gracefulTimeout time.Duration
	cleanupFuncs    []func()
}

// NewAPI wires routes and middleware. apiKeys may be nil to accept every
// caller.
func NewAPI(
	c *controller.Controller,
	tokens *backend.TokenService,
	apiKeys backend.APIKeyVerifier,
	gatherer prometheus.Gatherer,
	sc *util.ServerConfig,
	l *zap.SugaredLogger,
	cleanupFuncs []func(),
) (*API, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.Addr = sc.ServerAddr
	e.Server.WriteTimeout = sc.WriteTimeout
	e.Server.ReadTimeout = sc.ReadTimeout
	e.Server.IdleTimeout = sc.IdleTimeout
	e.HTTPErrorHandler = ErrorHandler(l)

	a := &API{
		server:          e,
		controller:      c,
		tokens:          tokens,
		apiKeys:         apiKeys,
		gatherer:        gatherer,
		log:             l,
		gracefulTimeout: sc.GracefulTimeout,
		cleanupFuncs:    cleanupFuncs,
	}
	if err := a.routes(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *API) routes() error {
	swagger, err := controller.GetSwagger()
	if err != nil {
		return fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	swagger.Servers = nil

	a.server.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		TargetHeader: models.MwRequestIDHeader,
	}))
	a.server.Use(echomiddleware.RequestLoggerWithConfig(GetLoggerMiddlewareConfig(a)))

	if a.gatherer != nil {
		a.server.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
	}

	g := a.server.Group(basePath)
	g.Use(APIKeyAuthMiddleware(a.apiKeys))
	g.Use(middleware.OapiRequestValidator(swagger))
	/* Маршруты повторяют документ openapi.yaml, валидатор
	отклоняет запросы, которые ему не соответствуют.
	*/
	controller.RegisterHandlers(g, a.controller, controller.RouteGuards{
		Authenticated: BearerAuthMiddleware(a.tokens),
		Admin:         RequireRoleMiddleware(models.RoleAdmin),
	})
	return nil
}

// Handler exposes the router for in-process use.
func (a *API) Handler() http.Handler {
	return a.server
}

func (a *API) Run(ctxBackground context.Context) {
	ctx, stop := signal.NotifyContext(ctxBackground, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.ListenGracefulShutdown(ctx)
}

func (a *API) ListenGracefulShutdown(ctx context.Context) {
	go func() {
		err := a.server.Start(a.server.Server.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()
	a.log.Infof("Listening on: %s%s", a.server.Server.Addr, basePath)

	<-ctx.Done()
	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	if err != nil {
		a.log.Errorf("shutdown: %v", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	longShutdown := make(chan struct{}, 1)

	go func() {
		time.Sleep(a.gracefulTimeout)
		longShutdown <- struct{}{}
	}()

	select {
	case <-shutdownCtx.Done():
		if errors.Is(shutdownCtx.Err(), context.Canceled) {
			a.log.Info("server shutdown completed")
		} else {
			a.log.Errorf("server shutdown: %v", shutdownCtx.Err())
		}
	case <-longShutdown:
		a.log.Infof("finished")
	}
}
