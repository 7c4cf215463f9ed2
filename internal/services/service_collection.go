// file: internal/services/service_collection.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coachhub/internal/badges"
	"coachhub/internal/cache"
	"coachhub/internal/config"
	"coachhub/internal/database"
	"coachhub/internal/events"
	"coachhub/internal/repositories"
	"coachhub/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ServiceCollection wires the badge engine with its infrastructure
type ServiceCollection struct {
	BadgeService BadgeService

	Engine       *badges.Engine
	Scheduler    *scheduler.Scheduler
	Repositories *repositories.Collection

	// Infrastructure Components
	Cache     cache.Cache
	EventBus  events.EventBus
	Logger    *zap.Logger
	Config    *config.Config
	DBManager *database.Manager

	startTime time.Time
}

// ServiceHealth represents the health status of the service collection
type ServiceHealth struct {
	Status       string                   `json:"status"`
	Timestamp    time.Time                `json:"timestamp"`
	Dependencies map[string]ServiceStatus `json:"dependencies"`
	Uptime       time.Duration            `json:"uptime"`
	NextBatchRun *time.Time               `json:"next_batch_run,omitempty"`
	Issues       []string                 `json:"issues,omitempty"`
}

// ServiceStatus represents the status of one dependency
type ServiceStatus struct {
	Name         string        `json:"name"`
	Status       string        `json:"status"` // healthy, unhealthy
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

// NewServiceCollection builds cache, repositories, event bus, engine and
// scheduler from cfg. Metrics are registered on reg when it is non-nil.
func NewServiceCollection(
	dbManager *database.Manager,
	cfg *config.Config,
	reg prometheus.Registerer,
	logger *zap.Logger,
) (*ServiceCollection, error) {
	if dbManager == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	sc := &ServiceCollection{
		DBManager: dbManager,
		Config:    cfg,
		Logger:    logger,
		startTime: time.Now(),
	}

	if err := sc.initializeInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to initialize infrastructure: %w", err)
	}

	repos, err := repositories.NewCollection(dbManager, sc.Cache, &cfg.Badges, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}
	sc.Repositories = repos

	if err := sc.initializeServices(reg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("Service collection initialized successfully",
		zap.String("cache_provider", cfg.Cache.Provider),
		zap.Bool("scheduler_enabled", cfg.Badges.SchedulerEnabled),
	)
	return sc, nil
}

// ===============================
// INITIALIZATION METHODS
// ===============================

func (sc *ServiceCollection) initializeInfrastructure() error {
	if sc.Config.Cache.Provider != "none" {
		c, err := cache.NewCache(&cache.Config{
			Provider:  sc.Config.Cache.Provider,
			TTL:       sc.Config.Cache.DefaultTTL,
			MaxKeys:   sc.Config.Cache.MaxEntries,
			RedisURL:  sc.Config.Cache.RedisURL,
			KeyPrefix: sc.Config.Cache.KeyPrefix,
		}, sc.Logger)
		if err != nil {
			return fmt.Errorf("failed to create cache: %w", err)
		}
		sc.Cache = c
	}

	sc.EventBus = events.NewEventBus(events.DefaultEventBusConfig(), sc.Logger)
	return sc.EventBus.SubscribePattern(events.PatternBadgeEvents, newBadgeEventLogger(sc.Logger))
}

func (sc *ServiceCollection) initializeServices(reg prometheus.Registerer) error {
	metrics := badges.DefaultMetrics()
	if reg != nil {
		metrics = badges.MustNewMetrics(reg)
		if err := sc.DBManager.RegisterMetrics(reg); err != nil {
			return fmt.Errorf("failed to register database metrics: %w", err)
		}
	}

	sc.Engine = badges.NewEngine(
		sc.Repositories.Skill,
		sc.Repositories.Badge,
		sc.Repositories.Award,
		sc.Logger,
		badges.WithMetrics(metrics),
		badges.WithEventBus(sc.EventBus),
	)

	sc.Scheduler = scheduler.New(scheduler.Config{
		Enabled:    sc.Config.Badges.SchedulerEnabled,
		Schedule:   sc.Config.Badges.Schedule,
		RunTimeout: sc.Config.Badges.RunTimeout,
	}, sc.Engine, sc.Logger)

	sc.BadgeService = NewBadgeService(
		sc.Engine,
		sc.Repositories.Badge,
		sc.Repositories.Award,
		sc.Logger,
		WithBatchRunner(sc.Scheduler),
		WithRevocationEvents(sc.EventBus),
	)
	return nil
}

// newBadgeEventLogger records every badge event in the service log
func newBadgeEventLogger(logger *zap.Logger) events.EventHandler {
	return events.NewEventHandlerFunc("badge-event-logger", func(_ context.Context, event events.Event) error {
		fields := []zap.Field{
			zap.String("event_id", event.GetEventID()),
			zap.String("event_type", event.GetEventType()),
			zap.Time("timestamp", event.GetTimestamp()),
		}
		switch e := event.(type) {
		case *events.BadgeAwardedEvent:
			fields = append(fields, zap.Int64("student_id", e.StudentID), zap.Int64("badge_id", e.BadgeID))
		case *events.BadgeRevokedEvent:
			fields = append(fields, zap.Int64("student_id", e.StudentID), zap.Int64("badge_id", e.BadgeID))
		case *events.BatchCompletedEvent:
			fields = append(fields, zap.Int("new_badges", e.TotalNewBadges), zap.Int("errors", e.ErrorCount))
		}
		logger.Info("Badge event", fields...)
		return nil
	})
}

// ===============================
// HEALTH
// ===============================

// HealthCheck reports database and cache status
func (sc *ServiceCollection) HealthCheck(ctx context.Context) *ServiceHealth {
	health := &ServiceHealth{
		Status:       "healthy",
		Timestamp:    time.Now(),
		Dependencies: make(map[string]ServiceStatus),
		Uptime:       time.Since(sc.startTime),
	}

	health.Dependencies["database"] = sc.checkDependency(ctx, "database", func(ctx context.Context) error {
		status := sc.DBManager.Health(ctx)
		if status.Status == database.StatusUnhealthy {
			return errors.New(joinIssues(status.Errors))
		}
		return nil
	})
	if sc.Cache != nil {
		health.Dependencies["cache"] = sc.checkDependency(ctx, "cache", sc.Cache.Health)
	}

	for name, status := range health.Dependencies {
		if status.Status != "healthy" {
			health.Status = "unhealthy"
			health.Issues = append(health.Issues, fmt.Sprintf("%s: %s", name, status.Error))
		}
	}

	if next := sc.Scheduler.NextRun(); !next.IsZero() {
		health.NextBatchRun = &next
	}
	return health
}

func (sc *ServiceCollection) checkDependency(ctx context.Context, name string, check func(context.Context) error) ServiceStatus {
	start := time.Now()
	status := ServiceStatus{Name: name, Status: "healthy"}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := check(checkCtx); err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
	}
	status.ResponseTime = time.Since(start)
	return status
}

func joinIssues(issues []string) string {
	if len(issues) == 0 {
		return "unhealthy"
	}
	return strings.Join(issues, "; ")
}

// ===============================
// SERVICE LIFECYCLE MANAGEMENT
// ===============================

// Start starts the event bus and the batch scheduler
func (sc *ServiceCollection) Start(ctx context.Context) error {
	if err := sc.EventBus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	if err := sc.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	sc.Logger.Info("Service collection started successfully")
	return nil
}

// Shutdown stops the scheduler, drains the event bus and releases the
// cache. The database manager is closed by its owner.
func (sc *ServiceCollection) Shutdown(ctx context.Context) error {
	sc.Logger.Info("Shutting down service collection")

	var errs []error

	stopped := make(chan struct{})
	go func() {
		sc.Scheduler.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("scheduler stop: %w", ctx.Err()))
	}

	if err := sc.EventBus.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("event bus stop: %w", err))
	}
	if sc.Cache != nil {
		if err := sc.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		sc.Logger.Error("Errors occurred during shutdown", zap.Error(err))
		return err
	}
	sc.Logger.Info("Service collection shutdown completed successfully")
	return nil
}
