package repositories

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coachhub/internal/cache"
	"coachhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleCatalog = `
badges:
  - id: 2
    name: All-Rounder
    sport: Cricket
    is_active: true
    rules:
      - field: battingGrip
        operator: GTE
        value: "7"
        weight: 1
      - field: footwork
        operator: GTE
        value: "7"
        weight: 1
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
  - id: 3
    name: Retired
    sport: ALL
    is_active: false
    rules:
      - field: situpScore
        operator: GT
        value: "0"
        weight: 1
`

func TestLoadBadgeCatalog(t *testing.T) {
	badges, err := LoadBadgeCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, badges, 3)

	assert.Equal(t, int64(1), badges[0].ID, "sorted by id")
	allRounder := badges[1]
	require.Len(t, allRounder.Rules, 2)
	assert.Equal(t, 1, allRounder.Rules[1].Position)
	assert.Equal(t, int64(2), allRounder.Rules[1].BadgeID)
	assert.Equal(t, models.SkillFootwork, allRounder.Rules[1].FieldName)
}

func TestLoadBadgeCatalogRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		catalog string
		want    string
	}{
		{
			name: "duplicate id",
			catalog: `
badges:
  - {id: 1, name: A, sport: ALL, rules: [{field: pushupScore, operator: GTE, value: "1", weight: 1}]}
  - {id: 1, name: B, sport: ALL, rules: [{field: pushupScore, operator: GTE, value: "1", weight: 1}]}
`,
			want: "duplicate id",
		},
		{
			name: "missing id",
			catalog: `
badges:
  - {name: A, sport: ALL, rules: [{field: pushupScore, operator: GTE, value: "1", weight: 1}]}
`,
			want: "id must be positive",
		},
		{
			name: "unknown field",
			catalog: `
badges:
  - {id: 1, name: A, sport: ALL, rules: [{field: wingspan, operator: GTE, value: "1", weight: 1}]}
`,
			want: "invalid badge catalog",
		},
		{
			name:    "unknown key",
			catalog: "badges:\n  - {id: 1, name: A, sport: ALL, colour: red}\n",
			want:    "decode badge catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBadgeCatalog(strings.NewReader(tt.catalog))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadBadgeCatalogEmpty(t *testing.T) {
	badges, err := LoadBadgeCatalog(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, badges)
}

func TestFileBadgeRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badges.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	repo, err := NewFileBadgeRepository(path, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	cricket, err := repo.ListActiveForSport(ctx, "cricket")
	require.NoError(t, err)
	assert.Len(t, cricket, 2, "inactive badge excluded")

	athletics, err := repo.ListActiveForSport(ctx, "Athletics")
	require.NoError(t, err)
	require.Len(t, athletics, 1)
	assert.Equal(t, "Push-up Pro", athletics[0].Name)

	retired, err := repo.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.False(t, retired.IsActive)

	_, err = repo.GetByID(ctx, 9)
	assert.ErrorIs(t, err, ErrNotFound)

	// results are copies
	athletics[0].Rules[0].Value = "1"
	again, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "20", again.Rules[0].Value)
}

func TestNewFileBadgeRepositoryMissingFile(t *testing.T) {
	_, err := NewFileBadgeRepository(filepath.Join(t.TempDir(), "nope.yaml"), zap.NewNop())
	assert.Error(t, err)
}

// countingBadges records how often the cache fell through
type countingBadges struct {
	BadgeRepository
	listCalls int
	getCalls  int
	err       error
}

func (c *countingBadges) ListActiveForSport(ctx context.Context, sport string) ([]*models.Badge, error) {
	c.listCalls++
	if c.err != nil {
		return nil, c.err
	}
	return c.BadgeRepository.ListActiveForSport(ctx, sport)
}

func (c *countingBadges) GetByID(ctx context.Context, id int64) (*models.Badge, error) {
	c.getCalls++
	return c.BadgeRepository.GetByID(ctx, id)
}

func newCachedFixture(t *testing.T) (*CachedBadgeRepository, *countingBadges) {
	t.Helper()
	badges, err := LoadBadgeCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	c, err := cache.NewMemoryCache(cache.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	inner := &countingBadges{BadgeRepository: NewStaticBadgeRepository(badges, zap.NewNop())}
	return NewCachedBadgeRepository(inner, c, 0, zap.NewNop()), inner
}

func TestCachedBadgeRepository(t *testing.T) {
	repo, inner := newCachedFixture(t)
	ctx := context.Background()

	first, err := repo.ListActiveForSport(ctx, "Cricket")
	require.NoError(t, err)
	second, err := repo.ListActiveForSport(ctx, "cricket")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.listCalls, "sport key is case-insensitive")
	assert.Equal(t, first, second)

	_, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.getCalls)
	assert.Equal(t, "Push-up Pro", b.Name)

	require.NoError(t, repo.Invalidate(ctx))
	_, err = repo.ListActiveForSport(ctx, "cricket")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.listCalls)
}

func TestCachedBadgeRepositoryDoesNotCacheErrors(t *testing.T) {
	repo, inner := newCachedFixture(t)
	ctx := context.Background()

	inner.err = errors.New("db down")
	_, err := repo.ListActiveForSport(ctx, "Cricket")
	assert.Error(t, err)

	inner.err = nil
	badges, err := repo.ListActiveForSport(ctx, "Cricket")
	require.NoError(t, err)
	assert.Len(t, badges, 2)
	assert.Equal(t, 2, inner.listCalls)
}
