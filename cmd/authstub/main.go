package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/dangbai_session/internal/api"
	"github.com/rryowa/dangbai_session/internal/backend"
	"github.com/rryowa/dangbai_session/internal/controller"
	"github.com/rryowa/dangbai_session/internal/metrics"
	"github.com/rryowa/dangbai_session/internal/util"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	serverCfg := util.NewServerConfig()

	var (
		revoked      backend.RevocationList = backend.NewMemoryRevocationList()
		apiKeys      backend.APIKeyVerifier
		cleanupFuncs []func()
	)

	if os.Getenv("REDIS_ADDR") != "" {
		redisClient, redisCleanup, err := util.NewRedisClient(ctx, logger, util.NewRedisConfig())
		if err != nil {
			logger.Fatal(zap.Error(err))
		}
		cleanupFuncs = append(cleanupFuncs, redisCleanup)
		revoked = backend.NewRedisRevocationList(redisClient)

		if serverCfg.APIKey != "" {
			apiKeyService := backend.NewRedisAPIKeyService(redisClient, logger)
			if err := apiKeyService.SyncAPIKey(ctx, serverCfg.APIKey); err != nil {
				logger.Fatal(zap.Error(err))
			}
			apiKeys = apiKeyService
		}
	} else if serverCfg.APIKey != "" {
		apiKeys = backend.NewStaticAPIKey(serverCfg.APIKey)
	}

	stubUsers, err := util.NewStubUsers()
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	users, err := backend.NewUserDirectory(stubUsers, bcrypt.DefaultCost)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	tokenService := backend.NewTokenService(util.NewTokenConfig(), revoked)
	authService := backend.NewAuthService(users, tokenService, backend.NewInMemoryRefreshSessions(), logger)

	controller := controller.NewController(logger, authService, backend.NewPostCatalog(time.Now()))

	registry := prometheus.NewRegistry()
	metrics.RegisterCollectors(registry)

	apiServer, err := api.NewAPI(controller, tokenService, apiKeys, registry, serverCfg, logger, cleanupFuncs)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	apiServer.Run(ctx)
}
