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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/api"
	"github.com/locolive/proconnect/internal/auth"
	"github.com/locolive/proconnect/internal/backend"
	"github.com/locolive/proconnect/internal/config"
	"github.com/locolive/proconnect/internal/logging"
	"github.com/locolive/proconnect/internal/repository"
)

const (
	cleanupInterval       = time.Hour
	notificationRetention = 30 * 24 * time.Hour
	shutdownTimeout       = 30 * time.Second
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log, cfg.Server.Env == "production")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Dev API failed", zap.Error(err))
	}
}

// run serves the dev API until ctx is cancelled, then drains in-flight requests
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting ProConnect dev API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	store, deps, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	service := backend.NewService(store, logger)
	if cfg.Database.SeedUsers > 0 {
		users, err := service.Seed(ctx, cfg.Database.SeedUsers, time.Now().UnixNano())
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		logger.Info("Seeded users", zap.Int("count", len(users)))
	}
	service.StartCleanupWorker(ctx, cleanupInterval, notificationRetention)

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessExpiry)
	router := api.NewRouter(service, jwtManager, api.NewHealthHandler(deps), cfg, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// openStore picks the backend store for cfg.Driver. Postgres is migrated on open and
// registered as a readiness dependency.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (backend.Store, map[string]api.Pinger, func(), error) {
	deps := map[string]api.Pinger{}
	if cfg.Driver != "postgres" {
		logger.Info("Using in-memory store, data is lost on exit")
		return backend.NewMemoryStore(), deps, func() {}, nil
	}

	pool, err := initDatabase(ctx, cfg.URL)
	if err != nil {
		return nil, nil, nil, err
	}
	repo := repository.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("Connected to database")

	deps["database"] = pool
	return repo, deps, pool.Close, nil
}

func initDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
