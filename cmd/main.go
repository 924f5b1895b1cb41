package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/client"
	"github.com/rryowa/dangbai_session/internal/events"
	"github.com/rryowa/dangbai_session/internal/metrics"
	"github.com/rryowa/dangbai_session/internal/migrations"
	"github.com/rryowa/dangbai_session/internal/refresh"
	"github.com/rryowa/dangbai_session/internal/service"
	"github.com/rryowa/dangbai_session/internal/session"
	"github.com/rryowa/dangbai_session/internal/storage"
	"github.com/rryowa/dangbai_session/internal/storage/file"
	"github.com/rryowa/dangbai_session/internal/storage/memory"
	"github.com/rryowa/dangbai_session/internal/storage/postgres"
	redisstore "github.com/rryowa/dangbai_session/internal/storage/redis"
	"github.com/rryowa/dangbai_session/internal/util"
)

const usage = `usage: dangbai [flags] <command> [args]

commands:
  login -u <username> -p <password>
  register -u <username> -e <email> -p <password> -n <display name> [-phone <phone>]
  whoami              print the stored user and ask the backend who it is
  get <path> [k=v..]  authenticated GET, prints the response data
  admin               open the admin dashboard if the session allows it
  logout
  logout-all
`

type app struct {
	log        *zap.SugaredLogger
	dispatcher *client.Dispatcher
	auth       *service.AuthService
	guard      *service.Guard
	registry   *prometheus.Registry
}

func main() {
	showMetrics := flag.Bool("metrics", false, "print client counters on exit")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	logger := util.NewZapLogger()

	err := run(ctx, logger, *showMetrics)
	stop()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.SugaredLogger, showMetrics bool) error {
	cfg := util.NewClientConfig()

	backend, cleanup, err := newSessionBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := session.NewStore(ctx, backend, logger)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	bus.Subscribe(events.ListenerFunc(printEvent))
	if cfg.WebhookURL != "" {
		notifier := events.NewWebhookNotifier(logger, cfg.WebhookURL)
		bus.Subscribe(notifier)
		defer notifier.Wait()
	}

	registry := prometheus.NewRegistry()
	metrics.RegisterCollectors(registry)

	clientCfg := client.Config{BaseURL: cfg.BaseURL, Timeout: cfg.RequestTimeout, APIKey: cfg.APIKey}
	exchanger, err := client.NewRefreshExchanger(clientCfg, logger)
	if err != nil {
		return err
	}
	refresher := refresh.NewRefresher(store, exchanger, bus, refresh.Config{
		Timeout:   cfg.RefreshTimeout,
		LoginPath: cfg.LoginPath,
	}, logger)
	dispatcher, err := client.NewDispatcher(clientCfg, store, refresher, logger)
	if err != nil {
		return err
	}

	a := &app{
		log:        logger,
		dispatcher: dispatcher,
		auth:       service.NewAuthService(dispatcher, store, bus, cfg.LoginPath, logger),
		guard:      service.NewGuard(store, cfg.LoginPath),
		registry:   registry,
	}
	if showMetrics {
		defer a.printMetrics()
	}
	return a.run(ctx, flag.Arg(0), flag.Args()[1:])
}

// newSessionBackend picks where the session is persisted. The returned
// cleanup closes any connection opened for it.
func newSessionBackend(ctx context.Context, cfg *util.ClientConfig, logger *zap.SugaredLogger) (storage.Backend, func(), error) {
	noop := func() {}

	switch cfg.SessionStore {
	case "memory":
		return memory.NewSessionBackend(logger), noop, nil
	case "file":
		logger.Debugw("using file session store", "path", cfg.SessionFile)
		return file.NewSessionBackend(cfg.SessionFile), noop, nil
	case "redis":
		rdb, cleanup, err := util.NewRedisClient(ctx, logger, util.NewRedisConfig())
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewSessionBackend(rdb, cfg.SessionProfile), cleanup, nil
	case "postgres":
		db, cleanup, err := util.NewDBConnection(ctx, logger, util.NewDBConfig())
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunMigrations(db, logger); err != nil {
			cleanup()
			return nil, nil, err
		}
		return postgres.NewStorage(db, cfg.SessionProfile), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore)
	}
}

func printEvent(_ context.Context, e events.Event) {
	switch e.Kind {
	case events.KindStarted:
		fmt.Fprintf(os.Stderr, "signed in as %s, continue at %s\n", e.Username, e.RedirectTo)
	case events.KindExpired:
		fmt.Fprintf(os.Stderr, "session expired (%s), sign in again at %s\n", e.Reason, e.RedirectTo)
	case events.KindEnded:
		fmt.Fprintf(os.Stderr, "signed out, continue at %s\n", e.RedirectTo)
	}
}
