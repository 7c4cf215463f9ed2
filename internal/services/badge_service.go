// file: internal/services/badge_service.go
package services

import (
	"context"
	"errors"
	"time"

	"coachhub/internal/badges"
	"coachhub/internal/events"
	"coachhub/internal/models"
	"coachhub/internal/repositories"
	"coachhub/internal/scheduler"
	"coachhub/internal/validation"

	"go.uber.org/zap"
)

type badgeService struct {
	engine *badges.Engine
	badges repositories.BadgeRepository
	awards repositories.AwardRepository
	runner BatchRunner
	bus    events.EventBus
	logger *zap.Logger
	now    func() time.Time
}

// BadgeServiceOption customizes the badge service
type BadgeServiceOption func(*badgeService)

// WithBatchRunner routes EvaluateAll through runner
func WithBatchRunner(runner BatchRunner) BadgeServiceOption {
	return func(s *badgeService) { s.runner = runner }
}

// WithRevocationEvents publishes a BadgeRevokedEvent on bus for every
// revoked award
func WithRevocationEvents(bus events.EventBus) BadgeServiceOption {
	return func(s *badgeService) { s.bus = bus }
}

// NewBadgeService creates a new badge service
func NewBadgeService(
	engine *badges.Engine,
	badgeRepo repositories.BadgeRepository,
	awardRepo repositories.AwardRepository,
	logger *zap.Logger,
	opts ...BadgeServiceOption,
) BadgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &badgeService{
		engine: engine,
		badges: badgeRepo,
		awards: awardRepo,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateStudent runs a live evaluation for one athlete
func (s *badgeService) EvaluateStudent(ctx context.Context, studentID int64) (*models.EvaluationResult, error) {
	if studentID <= 0 {
		return nil, InvalidInputError("student_id", "must be positive")
	}

	result, err := s.engine.EvaluateStudent(ctx, studentID)
	if err != nil {
		return nil, NewInternalError("badge evaluation failed", err)
	}
	return result, nil
}

// EvaluateAll runs a full pass over every athlete
func (s *badgeService) EvaluateAll(ctx context.Context) (*models.BatchSummary, error) {
	if s.runner == nil {
		return s.engine.EvaluateAll(ctx), nil
	}

	summary, err := s.runner.RunNow(ctx)
	if err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			return nil, NewConflictError("a badge evaluation run is already in progress", "RUN_IN_PROGRESS")
		}
		return nil, NewInternalError("badge evaluation run failed", err)
	}
	return summary, nil
}

// PreviewStudent reports progress without awarding anything
func (s *badgeService) PreviewStudent(ctx context.Context, studentID int64) (*models.EvaluationResult, error) {
	if studentID <= 0 {
		return nil, InvalidInputError("student_id", "must be positive")
	}

	result, err := s.engine.PreviewStudent(ctx, studentID)
	if err != nil {
		return nil, NewInternalError("badge preview failed", err)
	}
	return result, nil
}

// ListAwards returns the athlete's award history, revoked awards included
func (s *badgeService) ListAwards(ctx context.Context, studentID int64) ([]*models.StudentBadge, error) {
	if studentID <= 0 {
		return nil, InvalidInputError("student_id", "must be positive")
	}

	awards, err := s.awards.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, NewInternalError("failed to list awards", err)
	}
	return awards, nil
}

// RevokeAward withdraws a live award. The badge becomes earnable again on
// the next evaluation.
func (s *badgeService) RevokeAward(ctx context.Context, req *RevokeAwardRequest) error {
	if req == nil {
		return NewValidationError("request is required", nil)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return NewValidationError(err.Error(), err)
	}

	if err := s.awards.Revoke(ctx, req.StudentID, req.BadgeID, req.Reason); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return NewNotFoundError("no active award for this badge").WithContext(&ErrorContext{
				Resource: "student_badge",
				Metadata: map[string]interface{}{
					"student_id": req.StudentID,
					"badge_id":   req.BadgeID,
				},
			})
		}
		return NewInternalError("failed to revoke award", err)
	}

	s.logger.Info("Badge award revoked",
		zap.Int64("student_id", req.StudentID),
		zap.Int64("badge_id", req.BadgeID),
	)

	if s.bus != nil {
		event := events.NewBadgeRevokedEvent(req.StudentID, req.BadgeID, req.Reason, s.now().UTC())
		if err := s.bus.PublishAsync(ctx, event); err != nil {
			s.logger.Warn("Failed to publish revocation event", zap.Error(err))
		}
	}
	return nil
}

// GetBadge returns one catalog entry with its rules
func (s *badgeService) GetBadge(ctx context.Context, badgeID int64) (*models.Badge, error) {
	if badgeID <= 0 {
		return nil, InvalidInputError("badge_id", "must be positive")
	}

	badge, err := s.badges.GetByID(ctx, badgeID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, EntityNotFoundError("badge", badgeID)
		}
		return nil, NewInternalError("failed to load badge", err)
	}
	return badge, nil
}
