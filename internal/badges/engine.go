package badges

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coachhub/internal/events"
	"coachhub/internal/models"
	"coachhub/internal/repositories"

	"go.uber.org/zap"
)

// ===============================
// ENGINE
// ===============================

// Engine evaluates athletes against the badge catalog and stores the awards
// they earn. It holds no per-run state and is safe for concurrent use;
// duplicate awards from concurrent callers are rejected by the award store.
type Engine struct {
	skills  repositories.SkillRepository
	badges  repositories.BadgeRepository
	awards  repositories.AwardRepository
	logger  *zap.Logger
	metrics *Metrics
	bus     events.EventBus
	now     func() time.Time
}

// Option customizes an Engine
type Option func(*Engine)

// WithMetrics records evaluation counters on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEventBus publishes a BadgeAwardedEvent for every stored award.
func WithEventBus(bus events.EventBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithClock overrides the award timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a badge engine over the given stores
func NewEngine(
	skills repositories.SkillRepository,
	badges repositories.BadgeRepository,
	awards repositories.AwardRepository,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		skills: skills,
		badges: badges,
		awards: awards,
		logger: logger.Named("badges"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ===============================
// SINGLE ATHLETE
// ===============================

// EvaluateStudent scores every applicable badge the athlete does not already
// hold, stores an award for each newly earned one, and reports progress for
// all evaluated badges. An athlete without a skill snapshot yields an empty
// result and no error. Store failures are returned to the caller.
func (e *Engine) EvaluateStudent(ctx context.Context, studentID int64) (*models.EvaluationResult, error) {
	result, err := e.evaluate(ctx, studentID, false)
	if err != nil {
		e.metrics.observeEvaluation("error")
		return nil, err
	}
	if len(result.NewlyAwarded) > 0 {
		e.metrics.observeEvaluation("awarded")
	} else {
		e.metrics.observeEvaluation("unchanged")
	}
	return result, nil
}

// PreviewStudent is a dry run of EvaluateStudent: nothing is written and no
// events are published. Badges the athlete already holds are listed as
// earned with full progress. NewlyAwarded holds the awards a real pass would
// create, without ids.
func (e *Engine) PreviewStudent(ctx context.Context, studentID int64) (*models.EvaluationResult, error) {
	return e.evaluate(ctx, studentID, true)
}

func (e *Engine) evaluate(ctx context.Context, studentID int64, dryRun bool) (*models.EvaluationResult, error) {
	result := &models.EvaluationResult{
		StudentID:    studentID,
		NewlyAwarded: []*models.StudentBadge{},
		Progress:     []models.BadgeProgress{},
	}

	snapshot, err := e.skills.GetSnapshot(ctx, studentID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && snapshot == nil) {
		e.logger.Debug("No skill snapshot, skipping", zap.Int64("student_id", studentID))
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load skills for student %d: %w", studentID, err)
	}

	catalog, err := e.badges.ListActiveForSport(ctx, snapshot.Sport)
	if err != nil {
		return nil, fmt.Errorf("load badges for sport %q: %w", snapshot.Sport, err)
	}

	heldIDs, err := e.awards.ListActiveBadgeIDs(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load awards for student %d: %w", studentID, err)
	}
	held := make(map[int64]struct{}, len(heldIDs))
	for _, id := range heldIDs {
		held[id] = struct{}{}
	}

	for _, badge := range catalog {
		if badge == nil || !badge.AppliesTo(snapshot.Sport) {
			continue
		}

		if _, ok := held[badge.ID]; ok {
			if dryRun {
				result.Progress = append(result.Progress, models.BadgeProgress{
					BadgeID:   badge.ID,
					BadgeName: badge.Name,
					Progress:  100,
					Earned:    true,
				})
			}
			continue
		}

		score := ScoreBadge(badge, snapshot, e.logger)
		result.Progress = append(result.Progress, models.BadgeProgress{
			BadgeID:   badge.ID,
			BadgeName: badge.Name,
			Progress:  score.Progress,
			Earned:    score.Earned,
			Score:     score.TotalScore,
			MaxScore:  score.MaxScore,
		})
		if !score.Earned {
			continue
		}

		award := &models.StudentBadge{
			StudentID: studentID,
			BadgeID:   badge.ID,
			BadgeName: badge.Name,
			Score:     score.TotalScore,
			Progress:  100,
			AwardedAt: e.now().UTC(),
		}
		if dryRun {
			result.NewlyAwarded = append(result.NewlyAwarded, award)
			continue
		}

		if err := e.awards.Create(ctx, award); err != nil {
			if errors.Is(err, repositories.ErrAwardExists) {
				// Another pass stored it first.
				e.logger.Debug("Award already stored",
					zap.Int64("student_id", studentID),
					zap.Int64("badge_id", badge.ID),
				)
				continue
			}
			return nil, fmt.Errorf("award badge %d to student %d: %w", badge.ID, studentID, err)
		}

		result.NewlyAwarded = append(result.NewlyAwarded, award)
		e.metrics.observeAward(badge.Sport)
		e.logger.Info("Badge awarded",
			zap.Int64("student_id", studentID),
			zap.Int64("badge_id", badge.ID),
			zap.String("badge", badge.Name),
			zap.Float64("score", score.TotalScore),
		)
		e.publish(ctx, events.NewBadgeAwardedEvent(studentID, badge.ID, badge.Name, badge.Sport, score.TotalScore, award.AwardedAt))
	}

	return result, nil
}

// publish hands the event to the bus. Delivery failures are logged and never
// undo an award that is already stored. Events outlive a cancelled run.
func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.bus == nil {
		return
	}
	if err := e.bus.PublishAsync(context.WithoutCancel(ctx), event); err != nil {
		e.logger.Warn("Failed to publish badge event",
			zap.String("event_type", event.GetEventType()),
			zap.Error(err),
		)
	}
}

// ===============================
// BATCH
// ===============================

// EvaluateAll runs EvaluateStudent for every athlete with a skill snapshot,
// one at a time. A failing athlete is recorded in the summary and the run
// moves on; EvaluateAll itself never returns an error.
func (e *Engine) EvaluateAll(ctx context.Context) *models.BatchSummary {
	start := e.now()
	summary := &models.BatchSummary{
		Errors:    []string{},
		StartedAt: start.UTC(),
	}

	defer func() {
		summary.Duration = e.now().Sub(start)
		e.metrics.observeBatch(summary.Duration, len(summary.Errors))
		e.logger.Info("Badge evaluation run finished",
			zap.Int("students_evaluated", summary.StudentsEvaluated),
			zap.Int("new_badges", summary.TotalNewBadges),
			zap.Int("errors", len(summary.Errors)),
			zap.Duration("duration", summary.Duration),
		)
		e.publish(ctx, events.NewBatchCompletedEvent(
			summary.StudentsEvaluated, summary.TotalNewBadges, len(summary.Errors), summary.Duration, e.now().UTC(),
		))
	}()

	students, err := e.skills.ListEvaluableStudents(ctx)
	if err != nil {
		e.logger.Error("Failed to list students for evaluation", zap.Error(err))
		summary.Errors = append(summary.Errors, fmt.Sprintf("list students: %v", err))
		return summary
	}

	for _, student := range students {
		if err := ctx.Err(); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("run interrupted: %v", err))
			return summary
		}

		result, err := e.evaluateIsolated(ctx, student.ID)
		if err != nil {
			e.logger.Error("Student evaluation failed",
				zap.Int64("student_id", student.ID),
				zap.String("student", student.Name),
				zap.Error(err),
			)
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s (%d): %v", student.Name, student.ID, err))
			continue
		}

		summary.StudentsEvaluated++
		summary.TotalNewBadges += len(result.NewlyAwarded)
	}

	return summary
}

// evaluateIsolated turns a panic inside one athlete's pass into an error so
// the batch keeps going.
func (e *Engine) evaluateIsolated(ctx context.Context, studentID int64) (result *models.EvaluationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during evaluation: %v", r)
		}
	}()
	return e.EvaluateStudent(ctx, studentID)
}
