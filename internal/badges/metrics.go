package badges

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for badge evaluation activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	evaluations   *prometheus.CounterVec
	awards        *prometheus.CounterVec
	batchDuration prometheus.Histogram
	batchFailures prometheus.Counter
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the package-level metrics registered with the
// global Prometheus registry. Collectors are created once so repeated
// engine construction does not panic on duplicate registration.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Tests should pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	evaluations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coachhub",
			Subsystem: "badges",
			Name:      "student_evaluations_total",
			Help:      "Student evaluation passes by outcome.",
		},
		[]string{"outcome"},
	)
	awards := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coachhub",
			Subsystem: "badges",
			Name:      "awards_total",
			Help:      "Badges awarded, by badge sport.",
		},
		[]string{"sport"},
	)
	batchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "coachhub",
			Subsystem: "badges",
			Name:      "batch_duration_seconds",
			Help:      "Duration of full evaluation runs over every student.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
	batchFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coachhub",
			Subsystem: "badges",
			Name:      "batch_student_failures_total",
			Help:      "Students whose evaluation failed during a batch run.",
		},
	)

	reg.MustRegister(evaluations, awards, batchDuration, batchFailures)

	return &Metrics{
		evaluations:   evaluations,
		awards:        awards,
		batchDuration: batchDuration,
		batchFailures: batchFailures,
	}
}

func (m *Metrics) observeEvaluation(outcome string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeAward(sport string) {
	if m == nil {
		return
	}
	m.awards.WithLabelValues(sport).Inc()
}

func (m *Metrics) observeBatch(d time.Duration, failures int) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(d.Seconds())
	m.batchFailures.Add(float64(failures))
}
