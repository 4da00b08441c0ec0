package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/envelopes/internal/adapter/http"
	"github.com/iho/envelopes/internal/adapter/http/handler"
	"github.com/iho/envelopes/internal/adapter/http/middleware"
	"github.com/iho/envelopes/internal/adapter/idgen"
	fileRepo "github.com/iho/envelopes/internal/adapter/repository/file"
	postgresRepo "github.com/iho/envelopes/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/envelopes/internal/adapter/repository/redis"
	"github.com/iho/envelopes/internal/infrastructure/config"
	"github.com/iho/envelopes/internal/infrastructure/logger"
	"github.com/iho/envelopes/internal/infrastructure/metrics"
	"github.com/iho/envelopes/internal/infrastructure/postgres"
	"github.com/iho/envelopes/internal/infrastructure/redis"
	"github.com/iho/envelopes/internal/usecase"
)

const (
	limiterCleanupInterval = time.Minute
	limiterMaxIdle         = 10 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	log.Logger = appLogger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("server failed")
	}

	appLogger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	app, err := newApp(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.rateLimiter != nil {
		go app.rateLimiter.Run(ctx, limiterCleanupInterval, limiterMaxIdle)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      app.handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Str("backend", cfg.StorageBackend).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

type app struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
	closers     []func()
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	checks := map[string]handler.Check{}

	// Storage backend
	var repo usecase.BookRepository
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		checks["postgres"] = pool.Ping
		logger.Info().Msg("connected to postgres")

		repo = postgresRepo.NewBookRepository(pool, postgresRepo.NewRetrier(logger))
	default:
		books, err := fileRepo.NewBookRepository(cfg.DataDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open data directory: %w", err)
		}
		checks["storage"] = func(ctx context.Context) error {
			_, err := books.Exists(ctx, "readiness-probe")
			return err
		}
		logger.Info().Str("dir", cfg.DataDir).Msg("using file storage")

		repo = books
	}

	// Redis cache and cross-process lock
	var locker usecase.BookLocker = usecase.NewLocalLocker()
	if cfg.RedisEnabled() {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { client.Close() })
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		logger.Info().Msg("connected to redis")

		repo = redisRepo.NewCachedRepository(repo, redisRepo.NewCache(client), cfg.CacheTTL, logger)
		locker = redisRepo.NewLocker(client, cfg.LockTTL, logger)
	}

	// Use case
	ledgerUC := usecase.NewLedgerUseCase(
		repo,
		locker,
		idgen.NewUUIDGenerator(),
		idgen.NewULIDGenerator(),
		metrics.NewWithRegistry(reg, cfg.StorageBackend),
		logger,
	).WithSaveTimeout(cfg.SaveTimeout)

	if cfg.RateLimitRPS > 0 {
		a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	a.handler = httpAdapter.NewRouter(httpAdapter.RouterConfig{
		BookHandler:    handler.NewBookHandler(ledgerUC),
		HealthHandler:  handler.NewHealthHandler(checks),
		RateLimiter:    a.rateLimiter,
		MetricsHandler: promhttp.Handler(),
		Logger:         logger,
	})

	return a, nil
}
