// file: internal/repositories/interfaces.go
package repositories

import (
	"context"
	"errors"

	"coachhub/internal/models"
)

// ===============================
// SENTINEL ERRORS
// ===============================

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAwardExists is returned by AwardRepository.Create when a non-revoked
	// award already exists for the (student, badge) pair.
	ErrAwardExists = errors.New("badge already awarded")
)

// ===============================
// BADGE ENGINE COLLABORATORS
// ===============================

// SkillRepository reads athlete skill snapshots
type SkillRepository interface {
	// GetSnapshot returns the current snapshot of one athlete, or ErrNotFound
	// when the athlete has never been measured.
	GetSnapshot(ctx context.Context, studentID int64) (*models.SkillSnapshot, error)

	// ListEvaluableStudents returns every athlete that has a snapshot.
	ListEvaluableStudents(ctx context.Context) ([]*models.Student, error)
}

// BadgeRepository reads the badge catalog
type BadgeRepository interface {
	// ListActiveForSport returns active badges for the sport plus badges
	// open to all sports, each with its rules in position order.
	ListActiveForSport(ctx context.Context, sport string) ([]*models.Badge, error)

	GetByID(ctx context.Context, id int64) (*models.Badge, error)
}

// AwardRepository persists earned badges
type AwardRepository interface {
	// ListActiveBadgeIDs returns the ids of badges the student holds and
	// that have not been revoked.
	ListActiveBadgeIDs(ctx context.Context, studentID int64) ([]int64, error)

	// Create inserts a new award, filling ID. Returns ErrAwardExists when a
	// non-revoked award for the same pair is already stored.
	Create(ctx context.Context, award *models.StudentBadge) error

	ListByStudent(ctx context.Context, studentID int64) ([]*models.StudentBadge, error)

	// Revoke marks the student's active award for the badge as revoked.
	// Returns ErrNotFound when there is no active award.
	Revoke(ctx context.Context, studentID, badgeID int64, reason string) error
}
