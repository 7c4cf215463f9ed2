package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"coachhub/internal/config"
	"coachhub/internal/models"
	"coachhub/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubService struct {
	services.BadgeService
	summary *models.BatchSummary
	closed  bool
}

func (s *stubService) EvaluateStudent(_ context.Context, id int64) (*models.EvaluationResult, error) {
	return &models.EvaluationResult{
		StudentID:    id,
		NewlyAwarded: []*models.StudentBadge{{StudentID: id, BadgeID: 1, Score: 1}},
		Progress:     []models.BadgeProgress{{BadgeID: 1, BadgeName: "Push-up Pro", Progress: 100, Earned: true}},
	}, nil
}

func (s *stubService) PreviewStudent(_ context.Context, id int64) (*models.EvaluationResult, error) {
	return &models.EvaluationResult{
		StudentID: id,
		Progress:  []models.BadgeProgress{{BadgeID: 2, BadgeName: "All-Rounder", Progress: 50}},
	}, nil
}

func (s *stubService) EvaluateAll(context.Context) (*models.BatchSummary, error) {
	return s.summary, nil
}

func testApp(svc *stubService) *app {
	return &app{
		loadConfig: func() (*config.Config, error) { return &config.Config{}, nil },
		newLogger:  func(*config.Config) (*zap.Logger, error) { return zap.NewNop(), nil },
		badgeService: func(context.Context, *config.Config, *zap.Logger) (services.BadgeService, func(), error) {
			return svc, func() { svc.closed = true }, nil
		},
		migrate: func(context.Context, *config.Config, *zap.Logger) error { return nil },
	}
}

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEvaluateStudentText(t *testing.T) {
	svc := &stubService{}
	out, err := execute(t, testApp(svc), "evaluate", "student", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Student 7: 1 new badge(s)")
	assert.Contains(t, out, "Push-up Pro")
	assert.True(t, svc.closed)
}

func TestPreviewJSON(t *testing.T) {
	out, err := execute(t, testApp(&stubService{}), "preview", "9", "-o", "json")
	require.NoError(t, err)

	var result models.EvaluationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, int64(9), result.StudentID)
	assert.Equal(t, 50, result.Progress[0].Progress)
}

func TestEvaluateRejectsBadID(t *testing.T) {
	_, err := execute(t, testApp(&stubService{}), "evaluate", "student", "seven")
	assert.ErrorContains(t, err, "invalid student id")

	_, err = execute(t, testApp(&stubService{}), "evaluate", "student", "1", "-o", "yaml")
	assert.ErrorContains(t, err, "unsupported output")
}

func TestEvaluateAllReportsFailures(t *testing.T) {
	svc := &stubService{summary: &models.BatchSummary{StudentsEvaluated: 2, TotalNewBadges: 1, Errors: []string{"student 2: boom"}}}
	out, err := execute(t, testApp(svc), "evaluate", "all")
	assert.Error(t, err)
	assert.Contains(t, out, "Evaluated 2 athlete(s), 1 new badge(s)")
	assert.Contains(t, out, "student 2: boom")

	svc.summary.Errors = nil
	_, err = execute(t, testApp(svc), "evaluate", "all")
	assert.NoError(t, err)
}

func TestServiceSetupFailure(t *testing.T) {
	a := testApp(&stubService{})
	a.badgeService = func(context.Context, *config.Config, *zap.Logger) (services.BadgeService, func(), error) {
		return nil, nil, errors.New("database unreachable")
	}
	_, err := execute(t, a, "evaluate", "all")
	assert.ErrorContains(t, err, "database unreachable")
}

func TestMigrateUsesPathFlag(t *testing.T) {
	a := testApp(&stubService{})
	var gotPath string
	a.migrate = func(_ context.Context, cfg *config.Config, _ *zap.Logger) error {
		gotPath = cfg.Database.MigrationsPath
		return nil
	}

	out, err := execute(t, a, "migrate", "--path", "/srv/migrations")
	require.NoError(t, err)
	assert.Equal(t, "/srv/migrations", gotPath)
	assert.Contains(t, out, "Migrations applied")
}

func TestCatalogValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "badges.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
badges:
  - id: 1
    name: Push-up Pro
    sport: ALL
    is_active: true
    rules:
      - field: pushupScore
        operator: GTE
        value: "20"
        weight: 1
        required: true
  - id: 2
    name: Net Ready
    sport: Cricket
    is_active: false
    rules:
      - field: footwork
        operator: BETWEEN
        value: "5,9"
        weight: 2
`), 0o600))

	out, err := execute(t, testApp(&stubService{}), "catalog", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "2 badge(s), 1 active, 2 rule(s), 1 required")
	assert.Contains(t, out, "Cricket")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
badges:
  - id: 1
    name: Broken
    sport: ALL
    is_active: true
    rules:
      - field: footwork
        operator: BETWEEN
        value: "9,5"
        weight: 1
`), 0o600))

	_, err = execute(t, testApp(&stubService{}), "catalog", "validate", bad)
	assert.ErrorContains(t, err, "invalid badge catalog")

	_, err = execute(t, testApp(&stubService{}), "catalog", "validate", filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "open catalog")
}
