package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"coachhub/internal/database"
	"coachhub/internal/models"

	"go.uber.org/zap"
)

// badgeRepository implements BadgeRepository over badges/badge_rules
type badgeRepository struct {
	*BaseRepository
}

// NewBadgeRepository creates a postgres-backed badge catalog
func NewBadgeRepository(db *database.Manager, logger *zap.Logger) BadgeRepository {
	return &badgeRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

const badgeWithRulesSelect = `
	SELECT b.id, b.name, b.description, b.icon, b.sport, b.is_active, b.created_at, b.updated_at,
	       r.id, r.field_name, r.operator, r.value, r.weight, r.is_required, r.position
	FROM badges b
	LEFT JOIN badge_rules r ON r.badge_id = b.id`

// ListActiveForSport returns active badges for the sport and for ALL
func (r *badgeRepository) ListActiveForSport(ctx context.Context, sport string) ([]*models.Badge, error) {
	query := badgeWithRulesSelect + `
	WHERE b.is_active AND (b.sport = $1 OR LOWER(b.sport) = LOWER($2))
	ORDER BY b.id, r.position, r.id`

	rows, err := r.db.QueryContext(ctx, query, models.SportAll, sport)
	if err != nil {
		r.logger.Error("Failed to list badges",
			zap.String("sport", sport),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	return scanBadgesWithRules(rows)
}

// GetByID returns a badge with its rules regardless of its active flag
func (r *badgeRepository) GetByID(ctx context.Context, id int64) (*models.Badge, error) {
	query := badgeWithRulesSelect + `
	WHERE b.id = $1
	ORDER BY r.position, r.id`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get badge: %w", err)
	}
	defer rows.Close()

	badges, err := scanBadgesWithRules(rows)
	if err != nil {
		return nil, err
	}
	if len(badges) == 0 {
		return nil, ErrNotFound
	}
	return badges[0], nil
}

// scanBadgesWithRules folds the badge x rule join back into badges. Rows
// must arrive grouped by badge id.
func scanBadgesWithRules(rows *sql.Rows) ([]*models.Badge, error) {
	badges := []*models.Badge{}
	var current *models.Badge

	for rows.Next() {
		var (
			b         models.Badge
			updatedAt sql.NullTime
			ruleID    sql.NullInt64
			field     sql.NullString
			operator  sql.NullString
			value     sql.NullString
			weight    sql.NullFloat64
			required  sql.NullBool
			position  sql.NullInt32
		)
		if err := rows.Scan(
			&b.ID, &b.Name, &b.Description, &b.Icon, &b.Sport, &b.IsActive, &b.CreatedAt, &updatedAt,
			&ruleID, &field, &operator, &value, &weight, &required, &position,
		); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}

		if current == nil || current.ID != b.ID {
			if updatedAt.Valid {
				t := updatedAt.Time
				b.UpdatedAt = &t
			}
			b.Rules = []models.BadgeRule{}
			current = &b
			badges = append(badges, current)
		}

		if ruleID.Valid {
			current.Rules = append(current.Rules, models.BadgeRule{
				ID:        ruleID.Int64,
				BadgeID:   current.ID,
				FieldName: models.SkillField(field.String),
				Operator:  models.Operator(operator.String),
				Value:     value.String,
				Weight:    weight.Float64,
				Required:  required.Bool,
				Position:  int(position.Int32),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate badges: %w", err)
	}
	return badges, nil
}
