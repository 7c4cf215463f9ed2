package models

import "time"

// StudentBadge is the durable record that an athlete earned a badge.
type StudentBadge struct {
	ID           int64      `json:"id" db:"id"`
	StudentID    int64      `json:"student_id" db:"student_id"`
	BadgeID      int64      `json:"badge_id" db:"badge_id"`
	BadgeName    string     `json:"badge_name,omitempty" db:"badge_name"`
	Score        float64    `json:"score" db:"score"`
	Progress     int        `json:"progress" db:"progress"`
	AwardedAt    time.Time  `json:"awarded_at" db:"awarded_at"`
	Revoked      bool       `json:"revoked" db:"revoked"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	RevokeReason *string    `json:"revoke_reason,omitempty" db:"revoke_reason"`
}

// BadgeProgress reports how close an athlete is to one badge.
type BadgeProgress struct {
	BadgeID   int64   `json:"badge_id"`
	BadgeName string  `json:"badge_name"`
	Progress  int     `json:"progress"`
	Earned    bool    `json:"earned"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
}

// EvaluationResult is the outcome of evaluating a single athlete.
type EvaluationResult struct {
	StudentID    int64           `json:"student_id"`
	NewlyAwarded []*StudentBadge `json:"newly_awarded"`
	Progress     []BadgeProgress `json:"progress"`
}

// BatchSummary is the outcome of evaluating every athlete.
type BatchSummary struct {
	StudentsEvaluated int           `json:"students_evaluated"`
	TotalNewBadges    int           `json:"total_new_badges"`
	Errors            []string      `json:"errors"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
}

// HasErrors reports whether any athlete failed during the batch.
func (s *BatchSummary) HasErrors() bool {
	return len(s.Errors) > 0
}
