package events

import "time"

// Event types published by the badge engine
const (
	TypeBadgeAwarded   = "badge.awarded"
	TypeBadgeRevoked   = "badge.revoked"
	TypeBatchCompleted = "badge.batch_completed"
	PatternBadgeEvents = "badge.*"
)

// BadgeAwardedEvent is emitted once per newly stored award.
type BadgeAwardedEvent struct {
	BaseEvent
	StudentID int64   `json:"student_id"`
	BadgeID   int64   `json:"badge_id"`
	BadgeName string  `json:"badge_name"`
	Sport     string  `json:"sport"`
	Score     float64 `json:"score"`
}

// NewBadgeAwardedEvent creates a new BadgeAwardedEvent
func NewBadgeAwardedEvent(studentID, badgeID int64, badgeName, sport string, score float64, at time.Time) *BadgeAwardedEvent {
	return &BadgeAwardedEvent{
		BaseEvent: NewBaseEvent(TypeBadgeAwarded, at),
		StudentID: studentID,
		BadgeID:   badgeID,
		BadgeName: badgeName,
		Sport:     sport,
		Score:     score,
	}
}

// BadgeRevokedEvent is emitted when a coach revokes an award.
type BadgeRevokedEvent struct {
	BaseEvent
	StudentID int64  `json:"student_id"`
	BadgeID   int64  `json:"badge_id"`
	Reason    string `json:"reason,omitempty"`
}

func NewBadgeRevokedEvent(studentID, badgeID int64, reason string, at time.Time) *BadgeRevokedEvent {
	return &BadgeRevokedEvent{
		BaseEvent: NewBaseEvent(TypeBadgeRevoked, at),
		StudentID: studentID,
		BadgeID:   badgeID,
		Reason:    reason,
	}
}

// BatchCompletedEvent summarizes one full evaluation run.
type BatchCompletedEvent struct {
	BaseEvent
	StudentsEvaluated int           `json:"students_evaluated"`
	TotalNewBadges    int           `json:"total_new_badges"`
	ErrorCount        int           `json:"error_count"`
	Duration          time.Duration `json:"duration"`
}

func NewBatchCompletedEvent(evaluated, newBadges, errorCount int, d time.Duration, at time.Time) *BatchCompletedEvent {
	return &BatchCompletedEvent{
		BaseEvent:         NewBaseEvent(TypeBatchCompleted, at),
		StudentsEvaluated: evaluated,
		TotalNewBadges:    newBadges,
		ErrorCount:        errorCount,
		Duration:          d,
	}
}
