package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the current health status of the database
type HealthStatus struct {
	Status          string                 `json:"status"`
	Timestamp       time.Time              `json:"timestamp"`
	ResponseTime    time.Duration          `json:"response_time"`
	ConnectionCount int                    `json:"connection_count"`
	Errors          []string               `json:"errors,omitempty"`
	Details         map[string]interface{} `json:"details"`
}

// HealthChecker runs on-demand checks against the pool
type HealthChecker struct {
	manager *Manager
	logger  *zap.Logger

	mu         sync.RWMutex
	lastStatus *HealthStatus

	criticalTables  []string
	slowPingWarning time.Duration
	highUtilization float64
	timeoutDuration time.Duration
}

// NewHealthChecker creates a health checker for the manager
func NewHealthChecker(manager *Manager, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		manager: manager,
		logger:  logger,
		criticalTables: []string{
			"students", "student_skills", "badges", "badge_rules", "student_badges",
		},
		slowPingWarning: 500 * time.Millisecond,
		highUtilization: 0.9,
		timeoutDuration: 5 * time.Second,
	}
}

// Check pings the database, inspects the pool and verifies the badge tables
// are readable.
func (hc *HealthChecker) Check(ctx context.Context) *HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, hc.timeoutDuration)
	defer cancel()

	start := time.Now()
	status := &HealthStatus{
		Status:    StatusHealthy,
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	db := hc.manager.DB()
	if db == nil {
		status.Status = StatusUnhealthy
		status.Errors = append(status.Errors, "database connection is closed")
		hc.remember(status)
		return status
	}

	degraded := false

	if err := db.PingContext(ctx); err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("ping: %v", err))
	} else if ping := time.Since(start); ping > hc.slowPingWarning {
		status.Details["ping_warning"] = "slow ping response"
		degraded = true
	}

	stats := db.Stats()
	status.ConnectionCount = stats.OpenConnections
	status.Details["connection_pool"] = map[string]interface{}{
		"max_open":         stats.MaxOpenConnections,
		"open":             stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}
	if stats.MaxOpenConnections > 0 &&
		float64(stats.InUse)/float64(stats.MaxOpenConnections) > hc.highUtilization {
		status.Details["connection_warning"] = "high connection utilization"
		degraded = true
	}

	if len(status.Errors) == 0 {
		for _, table := range hc.criticalTables {
			// Table names are fixed above, never user input.
			query := fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", table)
			rows, err := db.QueryContext(ctx, query)
			if err != nil {
				status.Errors = append(status.Errors, fmt.Sprintf("table %s: %v", table, err))
				continue
			}
			rows.Close()
		}
	}

	status.ResponseTime = time.Since(start)
	switch {
	case len(status.Errors) > 0:
		status.Status = StatusUnhealthy
		hc.logger.Warn("Database health check failed", zap.Strings("errors", status.Errors))
	case degraded:
		status.Status = StatusDegraded
	}

	hc.remember(status)
	return status
}

func (hc *HealthChecker) remember(status *HealthStatus) {
	hc.mu.Lock()
	hc.lastStatus = status
	hc.mu.Unlock()
}

// GetLastStatus returns the result of the most recent check, if any
func (hc *HealthChecker) GetLastStatus() *HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.lastStatus
}

// IsHealthy reports whether the last check passed
func (hc *HealthChecker) IsHealthy() bool {
	last := hc.GetLastStatus()
	return last != nil && last.Status != StatusUnhealthy
}
