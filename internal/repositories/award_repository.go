package repositories

import (
	"context"
	"fmt"

	"coachhub/internal/database"
	"coachhub/internal/models"

	"go.uber.org/zap"
)

// awardRepository implements AwardRepository over student_badges
type awardRepository struct {
	*BaseRepository
}

// NewAwardRepository creates a postgres-backed award store
func NewAwardRepository(db *database.Manager, logger *zap.Logger) AwardRepository {
	return &awardRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// ListActiveBadgeIDs returns the ids of badges the athlete currently holds
func (r *awardRepository) ListActiveBadgeIDs(ctx context.Context, studentID int64) ([]int64, error) {
	query := `
		SELECT badge_id
		FROM student_badges
		WHERE student_id = $1 AND NOT revoked`

	rows, err := r.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list awarded badges: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan badge id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate awarded badges: %w", err)
	}
	return ids, nil
}

// Create inserts an award. The partial unique index on
// (student_id, badge_id) WHERE NOT revoked turns a concurrent duplicate into
// ErrAwardExists.
func (r *awardRepository) Create(ctx context.Context, award *models.StudentBadge) error {
	query := `
		INSERT INTO student_badges (student_id, badge_id, score, progress, awarded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		award.StudentID,
		award.BadgeID,
		award.Score,
		award.Progress,
		award.AwardedAt,
	).Scan(&award.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrAwardExists
		}
		r.logger.Error("Failed to create award",
			zap.Int64("student_id", award.StudentID),
			zap.Int64("badge_id", award.BadgeID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to create award: %w", err)
	}

	r.logger.Debug("Award created",
		zap.Int64("award_id", award.ID),
		zap.Int64("student_id", award.StudentID),
		zap.Int64("badge_id", award.BadgeID),
	)
	return nil
}

// ListByStudent returns the athlete's award history, newest first,
// including revoked awards
func (r *awardRepository) ListByStudent(ctx context.Context, studentID int64) ([]*models.StudentBadge, error) {
	query := `
		SELECT sb.id, sb.student_id, sb.badge_id, b.name, sb.score, sb.progress,
		       sb.awarded_at, sb.revoked, sb.revoked_at, sb.revoke_reason
		FROM student_badges sb
		JOIN badges b ON b.id = sb.badge_id
		WHERE sb.student_id = $1
		ORDER BY sb.awarded_at DESC, sb.id DESC`

	rows, err := r.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list awards: %w", err)
	}
	defer rows.Close()

	awards := []*models.StudentBadge{}
	for rows.Next() {
		a := &models.StudentBadge{}
		if err := rows.Scan(
			&a.ID, &a.StudentID, &a.BadgeID, &a.BadgeName, &a.Score, &a.Progress,
			&a.AwardedAt, &a.Revoked, &a.RevokedAt, &a.RevokeReason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan award: %w", err)
		}
		awards = append(awards, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate awards: %w", err)
	}
	return awards, nil
}

// Revoke marks the live award for the pair as revoked
func (r *awardRepository) Revoke(ctx context.Context, studentID, badgeID int64, reason string) error {
	query := `
		UPDATE student_badges
		SET revoked = TRUE, revoked_at = NOW(), revoke_reason = NULLIF($3, '')
		WHERE student_id = $1 AND badge_id = $2 AND NOT revoked`

	result, err := r.db.ExecContext(ctx, query, studentID, badgeID, reason)
	if err != nil {
		return fmt.Errorf("failed to revoke award: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read revoke result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	r.logger.Info("Award revoked",
		zap.Int64("student_id", studentID),
		zap.Int64("badge_id", badgeID),
		zap.String("reason", reason),
	)
	return nil
}
