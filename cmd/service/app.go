// cmd/service/app.go
package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"repo-mirror/internal/config"
	"repo-mirror/internal/events"
	"repo-mirror/internal/mirror"
	"repo-mirror/internal/ratelimit"
	"repo-mirror/internal/recovery"
	"repo-mirror/internal/scheduler"
	"repo-mirror/internal/store"
	"repo-mirror/internal/telemetry"
	"repo-mirror/migrations"
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     store.Store
	registry  *prometheus.Registry
	service   *mirror.Service
	scheduler *scheduler.Scheduler
	recovery  *recovery.Manager

	close func()
}

func newApp(ctx context.Context) (*app, error) {
	logger, logLevel := newLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully", "store", cfg.StoreDriver)

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := telemetry.NewMetrics(registry)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	publisher := events.NewPublisher(st, logger)
	governor := ratelimit.NewGovernor(st, publisher, metrics, logger, ratelimit.Options{
		MaxBackoff: cfg.RateLimitMaxBackoff,
	})
	clients := &mirror.PlatformClients{
		Governor:  governor,
		Logger:    logger,
		GitHubURL: cfg.GithubAPIURL,
	}
	svc := mirror.NewService(st, clients, governor, publisher, metrics, logger, mirror.Options{
		Concurrency:    cfg.MirrorConcurrency,
		OrgConcurrency: cfg.OrgConcurrency,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		registry: registry,
		service:  svc,
		scheduler: scheduler.New(st, svc, governor, publisher, metrics, logger, scheduler.Options{
			Tick:            cfg.SchedulerTick,
			DefaultInterval: cfg.DefaultSyncInterval,
			AutoStart:       cfg.ScheduleAutoStart,
		}),
		recovery: recovery.NewManager(st, svc, publisher, logger, cfg.RecoveryStaleAfter, nil),
		close:    closeStore,
	}, nil
}

// openStore connects to Postgres and applies migrations, or returns an in-memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("Using the in-memory store, state is lost on exit")
		return store.NewMemory(), func() {}, nil
	}

	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, nil, fmt.Errorf("failed to reach database: %w", err)
	}
	logger.Info("Database connection established")

	if err := migrations.Up(cfg.DBURL); err != nil {
		dbpool.Close()
		return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	return store.NewPostgres(dbpool), dbpool.Close, nil
}
