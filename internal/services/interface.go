// file: internal/services/interfaces.go
package services

import (
	"context"

	"coachhub/internal/models"
)

// ===============================
// CORE SERVICE INTERFACES
// ===============================

// BadgeService is the entry point the HTTP API and CLI use to drive the
// badge engine
type BadgeService interface {
	// Evaluation
	EvaluateStudent(ctx context.Context, studentID int64) (*models.EvaluationResult, error)
	EvaluateAll(ctx context.Context) (*models.BatchSummary, error)
	PreviewStudent(ctx context.Context, studentID int64) (*models.EvaluationResult, error)

	// Awards
	ListAwards(ctx context.Context, studentID int64) ([]*models.StudentBadge, error)
	RevokeAward(ctx context.Context, req *RevokeAwardRequest) error

	// Catalog
	GetBadge(ctx context.Context, badgeID int64) (*models.Badge, error)
}

// BatchRunner runs a full evaluation pass. The scheduler implements it so
// that manual and scheduled runs never overlap.
type BatchRunner interface {
	RunNow(ctx context.Context) (*models.BatchSummary, error)
}

// ===============================
// REQUEST TYPES
// ===============================

// RevokeAwardRequest identifies the award a coach withdraws
type RevokeAwardRequest struct {
	StudentID int64  `json:"-" validate:"required,gt=0"`
	BadgeID   int64  `json:"-" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"max=500"`
}
