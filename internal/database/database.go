package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"coachhub/internal/config"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// InitDB connects to postgres, retrying with exponential backoff while the
// server comes up, then applies migrations when AutoMigrate is set and waits
// for the badge tables to pass a health check.
func InitDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("Starting database initialization",
		zap.String("environment", cfg.Server.Environment))

	var manager *Manager
	connect := func() error {
		m, err := NewManager(&cfg.Database, logger)
		if err != nil {
			return err
		}
		manager = m
		return nil
	}
	if err := retry(ctx, cfg.Database.MaxRetryElapsed, logger, "connect", connect); err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}

	if cfg.Database.AutoMigrate {
		migrationsPath := determineMigrationsPath(cfg.Database.MigrationsPath)
		migrateOnce := func() error { return manager.Migrate(migrationsPath) }
		if err := retry(ctx, cfg.Database.MaxRetryElapsed, logger, "migrate", migrateOnce); err != nil {
			manager.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	if err := waitForHealthWithBackoff(ctx, manager, cfg.Database.MaxRetryElapsed, logger); err != nil {
		manager.Close()
		return nil, fmt.Errorf("database failed to become healthy: %w", err)
	}

	stats := manager.Stats()
	logger.Info("Database initialized",
		zap.Int("max_open_connections", stats.MaxOpenConnections),
		zap.Int("open_connections", stats.OpenConnections),
	)
	return manager, nil
}

func newBackoff(ctx context.Context, maxElapsed time.Duration) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	if maxElapsed > 0 {
		b.MaxElapsedTime = maxElapsed
	}
	return backoff.WithContext(b, ctx)
}

func retry(ctx context.Context, maxElapsed time.Duration, logger *zap.Logger, op string, fn func() error) error {
	return backoff.RetryNotify(fn, newBackoff(ctx, maxElapsed), func(err error, d time.Duration) {
		logger.Warn("Database operation failed, retrying",
			zap.String("operation", op),
			zap.Error(err),
			zap.Duration("retry_in", d),
		)
	})
}

func waitForHealthWithBackoff(ctx context.Context, manager *Manager, maxElapsed time.Duration, logger *zap.Logger) error {
	check := func() error {
		status := manager.Health(ctx)
		if status.Status == StatusUnhealthy {
			return fmt.Errorf("database unhealthy: %v", status.Errors)
		}
		logger.Info("Database is healthy",
			zap.String("status", status.Status),
			zap.Duration("response_time", status.ResponseTime))
		return nil
	}
	return retry(ctx, maxElapsed, logger, "health", check)
}

// determineMigrationsPath returns the configured path when it exists, then
// falls back to the usual locations relative to the working directory.
func determineMigrationsPath(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	for _, path := range []string{"./migrations", "../migrations", "../../migrations"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return "./migrations"
}
