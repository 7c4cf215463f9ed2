// file: internal/repositories/collection.go
package repositories

import (
	"context"
	"fmt"
	"time"

	"coachhub/internal/cache"
	"coachhub/internal/config"
	"coachhub/internal/database"

	"go.uber.org/zap"
)

// Collection holds all repository instances for dependency injection
type Collection struct {
	Skill SkillRepository
	Badge BadgeRepository
	Award AwardRepository

	// BadgeCache is set when catalog reads go through a cache
	BadgeCache *CachedBadgeRepository

	db     *database.Manager
	logger *zap.Logger
}

// NewCollection wires the postgres repositories. The badge catalog comes
// from cfg.CatalogFile when set and from the database otherwise; a
// non-nil catalogCache fronts it.
func NewCollection(db *database.Manager, catalogCache cache.Cache, cfg *config.BadgeConfig, logger *zap.Logger) (*Collection, error) {
	if db == nil {
		return nil, fmt.Errorf("database manager is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &config.BadgeConfig{}
	}

	collection := &Collection{
		Skill:  NewSkillRepository(db, logger),
		Award:  NewAwardRepository(db, logger),
		db:     db,
		logger: logger,
	}

	source := "database"
	if cfg.CatalogFile != "" {
		badges, err := NewFileBadgeRepository(cfg.CatalogFile, logger)
		if err != nil {
			return nil, err
		}
		collection.Badge = badges
		source = cfg.CatalogFile
	} else {
		collection.Badge = NewBadgeRepository(db, logger)
	}

	if catalogCache != nil {
		collection.BadgeCache = NewCachedBadgeRepository(collection.Badge, catalogCache, cfg.CatalogCacheTTL, logger)
		collection.Badge = collection.BadgeCache
	}

	logger.Info("Repository collection initialized successfully",
		zap.String("catalog_source", source),
		zap.Bool("catalog_cached", catalogCache != nil),
	)

	return collection, nil
}

// ===============================
// HEALTH AND MONITORING
// ===============================

// HealthCheck reports database health plus a probe of each repository
func (c *Collection) HealthCheck(ctx context.Context) map[string]interface{} {
	health := make(map[string]interface{})

	dbHealth := c.db.Health(ctx)
	health["database"] = map[string]interface{}{
		"status":        dbHealth.Status,
		"response_time": dbHealth.ResponseTime,
		"errors":        dbHealth.Errors,
	}

	health["repositories"] = map[string]interface{}{
		"skill": c.probe("skill", func() error {
			_, err := c.Skill.ListEvaluableStudents(ctx)
			return err
		}),
		"badge": c.probe("badge", func() error {
			_, err := c.Badge.ListActiveForSport(ctx, "")
			return err
		}),
	}

	metrics := c.db.Metrics()
	health["performance"] = map[string]interface{}{
		"query_count":        metrics.QueryCount,
		"error_count":        metrics.ErrorCount,
		"slow_query_count":   metrics.SlowQueryCount,
		"avg_query_duration": metrics.AvgQueryDuration,
	}

	return health
}

func (c *Collection) probe(name string, fn func() error) map[string]interface{} {
	start := time.Now()
	err := fn()
	duration := time.Since(start)

	result := map[string]interface{}{
		"duration": duration,
		"healthy":  err == nil,
	}
	if err != nil {
		result["error"] = err.Error()
		c.logger.Warn("Repository health check failed",
			zap.String("repository", name),
			zap.Error(err),
			zap.Duration("duration", duration),
		)
	}
	return result
}
