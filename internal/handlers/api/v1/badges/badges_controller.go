// ===============================
// FILE: internal/handlers/api/v1/badges/badges_controller.go
// ===============================

package badges

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"coachhub/internal/contextutils"
	"coachhub/internal/middleware"
	"coachhub/internal/response"
	"coachhub/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxRevokeBodyBytes = 16 << 10

// BadgeController exposes badge evaluation over HTTP
type BadgeController struct {
	service         services.BadgeService
	logger          *zap.Logger
	responseBuilder *response.Builder
}

// NewBadgeController creates a new badge controller
func NewBadgeController(
	service services.BadgeService,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *BadgeController {
	return &BadgeController{
		service:         service,
		logger:          logger,
		responseBuilder: responseBuilder,
	}
}

// RegisterRoutes mounts the badge endpoints on r. Evaluation triggers and
// revocation need a coach token; the full run needs an admin token.
func (c *BadgeController) RegisterRoutes(r chi.Router, auth *middleware.AuthMiddleware) {
	r.Route("/students/{id}/badges", func(r chi.Router) {
		r.Get("/", c.ListAwards)
		r.Get("/progress", c.GetProgress)
		r.With(auth.RequireCoach()).Post("/evaluate", c.EvaluateStudent)
		r.With(auth.RequireCoach()).Post("/{badgeID}/revoke", c.RevokeAward)
	})
	r.With(auth.RequireAdmin()).Post("/badges/evaluate-all", c.EvaluateAll)
	r.Get("/badges/{id}", c.GetBadge)
}

// ===============================
// EVALUATION
// ===============================

// EvaluateStudent handles POST /api/v1/students/{id}/badges/evaluate
func (c *BadgeController) EvaluateStudent(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "id", "student_id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	result, err := c.service.EvaluateStudent(r.Context(), studentID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	if len(result.NewlyAwarded) > 0 {
		c.logger.Info("Badges awarded via API",
			zap.Int64("student_id", studentID),
			zap.Int("new_badges", len(result.NewlyAwarded)),
			zap.String("actor", contextutils.GetActor(r.Context())),
			zap.String("request_id", contextutils.GetRequestID(r.Context())),
		)
	}
	c.responseBuilder.WriteSuccess(w, r, result)
}

// GetProgress handles GET /api/v1/students/{id}/badges/progress
func (c *BadgeController) GetProgress(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "id", "student_id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	result, err := c.service.PreviewStudent(r.Context(), studentID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, result)
}

// EvaluateAll handles POST /api/v1/badges/evaluate-all. The run is
// synchronous; per-athlete failures are reported in the summary.
func (c *BadgeController) EvaluateAll(w http.ResponseWriter, r *http.Request) {
	summary, err := c.service.EvaluateAll(r.Context())
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.logger.Info("Manual evaluation run finished",
		zap.Int("students_evaluated", summary.StudentsEvaluated),
		zap.Int("total_new_badges", summary.TotalNewBadges),
		zap.Int("errors", len(summary.Errors)),
		zap.String("actor", contextutils.GetActor(r.Context())),
	)
	c.responseBuilder.WriteSuccess(w, r, summary)
}

// ===============================
// AWARDS
// ===============================

// ListAwards handles GET /api/v1/students/{id}/badges
func (c *BadgeController) ListAwards(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "id", "student_id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	awards, err := c.service.ListAwards(r.Context(), studentID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, awards)
}

// RevokeAward handles POST /api/v1/students/{id}/badges/{badgeID}/revoke.
// The body is optional: {"reason": "..."}.
func (c *BadgeController) RevokeAward(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "id", "student_id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	badgeID, err := pathID(r, "badgeID", "badge_id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	var req services.RevokeAwardRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRevokeBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		c.logger.Warn("Failed to decode revoke request", zap.Error(err))
		c.responseBuilder.WriteError(w, r, services.NewValidationError("Invalid request body format", err))
		return
	}
	req.StudentID = studentID
	req.BadgeID = badgeID

	if err := c.service.RevokeAward(r.Context(), &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.logger.Info("Badge award revoked via API",
		zap.Int64("student_id", studentID),
		zap.Int64("badge_id", badgeID),
		zap.String("actor", contextutils.GetActor(r.Context())),
	)
	c.responseBuilder.WriteSuccess(w, r, map[string]interface{}{
		"student_id": studentID,
		"badge_id":   badgeID,
		"revoked":    true,
	})
}

// ===============================
// CATALOG
// ===============================

// GetBadge handles GET /api/v1/badges/{id}
func (c *BadgeController) GetBadge(w http.ResponseWriter, r *http.Request) {
	badgeID, err := pathID(r, "id", "badge_id")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	badge, err := c.service.GetBadge(r.Context(), badgeID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, badge)
}

func pathID(r *http.Request, param, field string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, services.InvalidInputError(field, "must be a positive integer")
	}
	return id, nil
}
