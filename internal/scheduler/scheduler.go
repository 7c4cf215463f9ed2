package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coachhub/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrRunInProgress is returned by RunNow while another batch is running.
var ErrRunInProgress = errors.New("badge evaluation already running")

// BatchRunner evaluates every athlete
type BatchRunner interface {
	EvaluateAll(ctx context.Context) *models.BatchSummary
}

// Config holds scheduler configuration.
type Config struct {
	Enabled    bool
	Schedule   string // standard 5-field cron expression
	RunTimeout time.Duration
}

// Scheduler runs the badge batch on a cron schedule. Scheduled and
// manual runs never overlap.
type Scheduler struct {
	cron   *cron.Cron
	runner BatchRunner
	config Config
	logger *zap.Logger

	running sync.Mutex

	mu       sync.Mutex
	baseCtx  context.Context
	entryID  cron.EntryID
	last     *models.BatchSummary
	started  bool
	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates a new Scheduler.
func New(cfg Config, runner BatchRunner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithChain(cron.Recover(cronLogger{logger.Sugar()})),
			cron.WithLogger(cronLogger{logger.Sugar()}),
		),
		runner:  runner,
		config:  cfg,
		logger:  logger,
		baseCtx: context.Background(),
		stopped: make(chan struct{}),
	}
}

// Start registers the batch job and starts the cron loop. Cancelling ctx
// stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler disabled by config")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	id, err := s.cron.AddFunc(s.config.Schedule, s.scheduledRun)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.config.Schedule, err)
	}
	s.entryID = id
	s.baseCtx = ctx
	s.started = true

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("schedule", s.config.Schedule),
		zap.Time("next_run", s.cron.Entry(id).Next),
	)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()

	return nil
}

// Stop waits for a running batch to finish. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Scheduler stopping...")
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		close(s.stopped)
		s.logger.Info("Scheduler stopped")
	})
}

// Done is closed once the scheduler has fully stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

// NextRun reports when the batch fires next; zero when not started.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// LastSummary returns the summary of the most recent completed run.
func (s *Scheduler) LastSummary() *models.BatchSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunNow runs the batch immediately on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context) (*models.BatchSummary, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	return s.run(ctx, "manual"), nil
}

func (s *Scheduler) scheduledRun() {
	if !s.running.TryLock() {
		s.logger.Warn("Skipping scheduled run, previous batch still running")
		return
	}
	defer s.running.Unlock()

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	s.run(ctx, "scheduled")
}

// run must be called with s.running held
func (s *Scheduler) run(ctx context.Context, trigger string) *models.BatchSummary {
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	s.logger.Info("Badge evaluation run starting", zap.String("trigger", trigger))
	summary := s.runner.EvaluateAll(ctx)

	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	s.logger.Info("Badge evaluation run finished",
		zap.String("trigger", trigger),
		zap.Int("students_evaluated", summary.StudentsEvaluated),
		zap.Int("new_badges", summary.TotalNewBadges),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("duration", summary.Duration),
	)
	return summary
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
