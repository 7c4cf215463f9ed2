package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"coachhub/internal/badges"
	"coachhub/internal/events"
	"coachhub/internal/models"
	"coachhub/internal/repositories"
	"coachhub/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// ===============================
// FAKES
// ===============================

type memSkills struct {
	snapshots map[int64]*models.SkillSnapshot
}

func (m *memSkills) GetSnapshot(_ context.Context, id int64) (*models.SkillSnapshot, error) {
	s, ok := m.snapshots[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return s, nil
}

func (m *memSkills) ListEvaluableStudents(context.Context) ([]*models.Student, error) {
	out := []*models.Student{}
	for id, s := range m.snapshots {
		out = append(out, &models.Student{ID: id, Sport: s.Sport})
	}
	return out, nil
}

type memAwards struct {
	mu      sync.Mutex
	awards  []*models.StudentBadge
	listErr error
}

func (m *memAwards) ListActiveBadgeIDs(_ context.Context, studentID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int64{}
	for _, a := range m.awards {
		if a.StudentID == studentID && !a.Revoked {
			ids = append(ids, a.BadgeID)
		}
	}
	return ids, nil
}

func (m *memAwards) Create(_ context.Context, award *models.StudentBadge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	award.ID = int64(len(m.awards) + 1)
	m.awards = append(m.awards, award)
	return nil
}

func (m *memAwards) ListByStudent(_ context.Context, studentID int64) ([]*models.StudentBadge, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.StudentBadge{}
	for _, a := range m.awards {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAwards) Revoke(_ context.Context, studentID, badgeID int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.awards {
		if a.StudentID == studentID && a.BadgeID == badgeID && !a.Revoked {
			a.Revoked = true
			return nil
		}
	}
	return repositories.ErrNotFound
}

type stubRunner struct {
	summary *models.BatchSummary
	err     error
}

func (s *stubRunner) RunNow(context.Context) (*models.BatchSummary, error) {
	return s.summary, s.err
}

func pushupCatalog() repositories.BadgeRepository {
	return repositories.NewStaticBadgeRepository([]*models.Badge{{
		ID:       1,
		Name:     "Push-up Pro",
		Sport:    models.SportAll,
		IsActive: true,
		Rules: []models.BadgeRule{
			{ID: 1, BadgeID: 1, FieldName: models.SkillPushupScore, Operator: models.OperatorGTE, Value: "20", Weight: 1, Required: true},
		},
	}}, zap.NewNop())
}

func newTestService(t *testing.T, opts ...BadgeServiceOption) (BadgeService, *memAwards) {
	t.Helper()
	skills := &memSkills{snapshots: map[int64]*models.SkillSnapshot{
		7: models.NewSkillSnapshot(7, "Cricket", map[models.SkillField]float64{models.SkillPushupScore: 22}),
	}}
	awards := &memAwards{}
	catalog := pushupCatalog()
	engine := badges.NewEngine(skills, catalog, awards, zap.NewNop(),
		badges.WithMetrics(badges.MustNewMetrics(prometheus.NewRegistry())))
	return NewBadgeService(engine, catalog, awards, zap.NewNop(), opts...), awards
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se *ServiceError
	require.True(t, errors.As(err, &se), "expected ServiceError, got %v", err)
	return se.GetStatusCode()
}

// ===============================
// TESTS
// ===============================

func TestBadgeServiceEvaluateStudent(t *testing.T) {
	svc, awards := newTestService(t)
	ctx := context.Background()

	result, err := svc.EvaluateStudent(ctx, 7)
	require.NoError(t, err)
	require.Len(t, result.NewlyAwarded, 1)
	assert.Len(t, awards.awards, 1)

	again, err := svc.EvaluateStudent(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, again.NewlyAwarded)

	_, err = svc.EvaluateStudent(ctx, 0)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestBadgeServicePreviewDoesNotAward(t *testing.T) {
	svc, awards := newTestService(t)

	result, err := svc.PreviewStudent(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, result.Progress, 1)
	assert.True(t, result.Progress[0].Earned)
	assert.Empty(t, awards.awards)
}

func TestBadgeServiceEvaluateAll(t *testing.T) {
	t.Run("runs engine directly without runner", func(t *testing.T) {
		svc, _ := newTestService(t)
		summary, err := svc.EvaluateAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.StudentsEvaluated)
		assert.Equal(t, 1, summary.TotalNewBadges)
	})

	t.Run("run in progress is a conflict", func(t *testing.T) {
		svc, _ := newTestService(t, WithBatchRunner(&stubRunner{err: scheduler.ErrRunInProgress}))
		_, err := svc.EvaluateAll(context.Background())
		assert.Equal(t, http.StatusConflict, statusOf(t, err))
	})

	t.Run("delegates to runner", func(t *testing.T) {
		want := &models.BatchSummary{StudentsEvaluated: 40}
		svc, _ := newTestService(t, WithBatchRunner(&stubRunner{summary: want}))
		got, err := svc.EvaluateAll(context.Background())
		require.NoError(t, err)
		assert.Same(t, want, got)
	})
}

func TestBadgeServiceListAwards(t *testing.T) {
	svc, awards := newTestService(t)
	ctx := context.Background()

	_, err := svc.EvaluateStudent(ctx, 7)
	require.NoError(t, err)

	list, err := svc.ListAwards(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	awards.listErr = errors.New("db down")
	_, err = svc.ListAwards(ctx, 7)
	assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
}

func TestBadgeServiceRevokeAward(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := events.NewEventBus(nil, zap.NewNop())
	received := make(chan *events.BadgeRevokedEvent, 1)
	require.NoError(t, bus.Subscribe(events.TypeBadgeRevoked, events.NewEventHandlerFunc("test", func(_ context.Context, e events.Event) error {
		received <- e.(*events.BadgeRevokedEvent)
		return nil
	})))
	require.NoError(t, bus.Start(context.Background()))
	defer bus.Stop(context.Background())

	svc, awards := newTestService(t, WithRevocationEvents(bus))
	ctx := context.Background()

	_, err := svc.EvaluateStudent(ctx, 7)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAward(ctx, &RevokeAwardRequest{StudentID: 7, BadgeID: 1, Reason: "retest"}))
	assert.True(t, awards.awards[0].Revoked)

	select {
	case e := <-received:
		assert.Equal(t, int64(7), e.StudentID)
		assert.Equal(t, "retest", e.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("revocation event not delivered")
	}

	err = svc.RevokeAward(ctx, &RevokeAwardRequest{StudentID: 7, BadgeID: 1})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	err = svc.RevokeAward(ctx, &RevokeAwardRequest{StudentID: 0, BadgeID: 1})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	// revoked badges are earnable again
	result, err := svc.EvaluateStudent(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, result.NewlyAwarded, 1)
}

func TestBadgeServiceGetBadge(t *testing.T) {
	svc, _ := newTestService(t)

	b, err := svc.GetBadge(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Push-up Pro", b.Name)

	_, err = svc.GetBadge(context.Background(), 99)
	assert.True(t, IsNotFoundError(err))
}

func TestGetServiceErrorWrapsPlainErrors(t *testing.T) {
	plain := errors.New("boom")
	se := GetServiceError(plain)
	assert.Equal(t, "INTERNAL_ERROR", se.Type)
	assert.ErrorIs(t, se, plain)

	nf := NewNotFoundError("missing")
	assert.Same(t, nf, GetServiceError(fmt.Errorf("wrapped: %w", nf)))
}
