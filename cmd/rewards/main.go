package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/helpdesk-labs/support-rewards/internal/api/http"
	"github.com/helpdesk-labs/support-rewards/internal/api/http/handlers"
	"github.com/helpdesk-labs/support-rewards/internal/catalog"
	"github.com/helpdesk-labs/support-rewards/internal/config"
	"github.com/helpdesk-labs/support-rewards/internal/notify"
	"github.com/helpdesk-labs/support-rewards/internal/observability"
	"github.com/helpdesk-labs/support-rewards/internal/persistence"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	"github.com/helpdesk-labs/support-rewards/internal/repository/memstore"
	"github.com/helpdesk-labs/support-rewards/internal/service"
	"github.com/helpdesk-labs/support-rewards/internal/worker"
)

const shutdownGrace = 10 * time.Second

type options struct {
	migrate   bool
	seed      bool
	reconcile bool
	serve     bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("support-rewards: %v", err)
	}
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("rewards", pflag.ContinueOnError)
	flagSet.BoolVar(&opts.migrate, "migrate", false, "apply database migrations")
	flagSet.BoolVar(&opts.seed, "seed", false, "upsert the achievement and marketplace catalog")
	flagSet.BoolVar(&opts.reconcile, "reconcile", false, "recompute aggregates and achievements for all staff")
	flagSet.BoolVar(&opts.serve, "serve", false, "run the engine and the ops server until interrupted")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}
	if !opts.migrate && !opts.seed && !opts.reconcile && !opts.serve {
		opts.serve = true
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	if opts.migrate || (opts.serve && cfg.Postgres.RunMigrations && cfg.Postgres.DSN != "") {
		if cfg.Postgres.DSN == "" {
			return errors.New("--migrate requires POSTGRES_DSN")
		}
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	var repos repository.Set
	if pg.Enabled() {
		repos = repository.NewPostgresSet(pg.Pool)
	} else {
		logger.Warn("running on the in-memory store; state is lost on exit")
		repos = memstore.New().Repositories()
		opts.seed = true
	}

	deps := service.EngineDependencies{
		Repos:   repos,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
		Config:  *cfg,
	}
	if rdb.Enabled() {
		deps.Locker = persistence.NewRedisLocker(rdb.Client, cfg.Redis.LockTTL, cfg.Engine.LockWaitTimeout, logger.Named("lock"))
		deps.Notifier = notify.NewRedisNotifier(rdb.Client, cfg.Notification.Channel)
	} else {
		deps.Notifier = notify.NewLogNotifier(logger.Named("notify"))
	}
	engine := service.NewEngine(deps)

	if opts.seed {
		c, err := catalog.LoadFile(cfg.Engine.CatalogFile)
		if err != nil {
			return err
		}
		if err := catalog.Seed(ctx, repos.Achievements, repos.Marketplace, c, logger); err != nil {
			return err
		}
	}

	if opts.reconcile {
		report, err := engine.Reconciler.Reconcile(ctx)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		if len(report.Failures) > 0 {
			return fmt.Errorf("reconcile: %d of %d staff failed", len(report.Failures), report.Staff)
		}
	}

	if !opts.serve {
		return nil
	}
	return serve(ctx, cfg, logger, deps.Metrics, engine, pg, rdb)
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics, engine *service.Engine, pg *persistence.Postgres, rdb *persistence.Redis) error {
	worker.StartNotificationWorker(engine.Notifications)
	defer worker.StopNotificationWorker(engine.Notifications, shutdownGrace, logger)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Dependency{
			"postgres": pg,
			"redis":    rdb,
		}),
		Metrics: handlers.NewMetricsHandler(metrics),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ops server listening", zap.String("addr", cfg.App.Addr()))
		errCh <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber listen: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	return app.ShutdownWithTimeout(shutdownGrace)
}
