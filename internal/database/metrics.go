package database

import (
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics collects query counters for one pool
type Metrics struct {
	db *sql.DB

	queryCount     atomic.Int64
	queryDuration  atomic.Int64 // nanoseconds
	errorCount     atomic.Int64
	slowQueryCount atomic.Int64
	execCount      atomic.Int64
	selectCount    atomic.Int64
	queryRowCount  atomic.Int64

	slowQueryThreshold time.Duration
}

// MetricsSnapshot provides a point-in-time view of metrics
type MetricsSnapshot struct {
	QueryCount       int64         `json:"query_count"`
	ErrorCount       int64         `json:"error_count"`
	SlowQueryCount   int64         `json:"slow_query_count"`
	ExecCount        int64         `json:"exec_count"`
	SelectCount      int64         `json:"select_count"`
	QueryRowCount    int64         `json:"query_row_count"`
	AvgQueryDuration time.Duration `json:"avg_query_duration"`
	DBStats          sql.DBStats   `json:"db_stats"`
	Timestamp        time.Time     `json:"timestamp"`
}

// NewMetrics creates a new metrics collector
func NewMetrics(db *sql.DB, slowQueryThreshold time.Duration) *Metrics {
	if slowQueryThreshold <= 0 {
		slowQueryThreshold = 100 * time.Millisecond
	}
	return &Metrics{db: db, slowQueryThreshold: slowQueryThreshold}
}

// RecordQuery records metrics for a database query
func (m *Metrics) RecordQuery(queryType string, duration time.Duration, err error) {
	m.queryCount.Add(1)
	m.queryDuration.Add(int64(duration))

	if err != nil {
		m.errorCount.Add(1)
	}
	if duration > m.slowQueryThreshold {
		m.slowQueryCount.Add(1)
	}

	switch queryType {
	case "exec":
		m.execCount.Add(1)
	case "query":
		m.selectCount.Add(1)
	case "query_row":
		m.queryRowCount.Add(1)
	}
}

// Snapshot returns current metrics snapshot
func (m *Metrics) Snapshot() *MetricsSnapshot {
	count := m.queryCount.Load()

	var avg time.Duration
	if count > 0 {
		avg = time.Duration(m.queryDuration.Load() / count)
	}

	snap := &MetricsSnapshot{
		QueryCount:       count,
		ErrorCount:       m.errorCount.Load(),
		SlowQueryCount:   m.slowQueryCount.Load(),
		ExecCount:        m.execCount.Load(),
		SelectCount:      m.selectCount.Load(),
		QueryRowCount:    m.queryRowCount.Load(),
		AvgQueryDuration: avg,
		Timestamp:        time.Now(),
	}
	if m.db != nil {
		snap.DBStats = m.db.Stats()
	}
	return snap
}

// Register exposes the pool statistics and query counters on reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	cs := []prometheus.Collector{
		collectors.NewDBStatsCollector(m.db, "coachhub"),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "coachhub",
			Subsystem: "db",
			Name:      "queries_total",
			Help:      "Queries issued through the database manager.",
		}, func() float64 { return float64(m.queryCount.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "coachhub",
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Queries that returned an error.",
		}, func() float64 { return float64(m.errorCount.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "coachhub",
			Subsystem: "db",
			Name:      "slow_queries_total",
			Help:      "Queries slower than the configured threshold.",
		}, func() float64 { return float64(m.slowQueryCount.Load()) }),
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
