package repositories

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"coachhub/internal/models"
	"coachhub/internal/validation"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of a badge catalog
type catalogFile struct {
	Badges []*models.Badge `yaml:"badges"`
}

// fileBadgeRepository serves a static catalog loaded from YAML
type fileBadgeRepository struct {
	badges []*models.Badge
	byID   map[int64]*models.Badge
	logger *zap.Logger
}

// LoadBadgeCatalog decodes and validates a YAML badge catalog. Rule
// positions follow their order in the file.
func LoadBadgeCatalog(r io.Reader) ([]*models.Badge, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return []*models.Badge{}, nil
		}
		return nil, fmt.Errorf("decode badge catalog: %w", err)
	}

	seen := make(map[int64]bool, len(file.Badges))
	var problems []string
	for i, b := range file.Badges {
		if b == nil {
			problems = append(problems, fmt.Sprintf("entry %d is empty", i))
			continue
		}
		if b.ID <= 0 {
			problems = append(problems, fmt.Sprintf("badge %q: id must be positive", b.Name))
		} else if seen[b.ID] {
			problems = append(problems, fmt.Sprintf("badge %q: duplicate id %d", b.Name, b.ID))
		}
		seen[b.ID] = true
		for j := range b.Rules {
			b.Rules[j].BadgeID = b.ID
			b.Rules[j].Position = j
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid badge catalog: %s", strings.Join(problems, "; "))
	}

	if err := validation.ValidateCatalog(file.Badges); err != nil {
		return nil, err
	}

	sort.SliceStable(file.Badges, func(i, j int) bool {
		return file.Badges[i].ID < file.Badges[j].ID
	})
	return file.Badges, nil
}

// NewFileBadgeRepository loads the catalog at path
func NewFileBadgeRepository(path string, logger *zap.Logger) (BadgeRepository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open badge catalog: %w", err)
	}
	defer f.Close()

	badges, err := LoadBadgeCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewStaticBadgeRepository(badges, logger), nil
}

// NewStaticBadgeRepository serves an in-memory catalog. The slice is
// copied; callers may reuse it afterwards.
func NewStaticBadgeRepository(badges []*models.Badge, logger *zap.Logger) BadgeRepository {
	if logger == nil {
		logger = zap.NewNop()
	}

	repo := &fileBadgeRepository{
		badges: make([]*models.Badge, 0, len(badges)),
		byID:   make(map[int64]*models.Badge, len(badges)),
		logger: logger,
	}
	for _, b := range badges {
		if b == nil {
			continue
		}
		c := cloneBadge(b)
		repo.badges = append(repo.badges, c)
		repo.byID[c.ID] = c
	}

	logger.Info("Badge catalog loaded", zap.Int("badges", len(repo.badges)))
	return repo
}

func (r *fileBadgeRepository) ListActiveForSport(_ context.Context, sport string) ([]*models.Badge, error) {
	out := []*models.Badge{}
	for _, b := range r.badges {
		if b.AppliesTo(sport) {
			out = append(out, cloneBadge(b))
		}
	}
	return out, nil
}

func (r *fileBadgeRepository) GetByID(_ context.Context, id int64) (*models.Badge, error) {
	b, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBadge(b), nil
}

// cloneBadge copies the badge and its rules so callers cannot mutate
// the catalog
func cloneBadge(b *models.Badge) *models.Badge {
	c := *b
	c.Rules = append([]models.BadgeRule{}, b.Rules...)
	if b.UpdatedAt != nil {
		t := *b.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}
