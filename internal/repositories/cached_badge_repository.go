package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"coachhub/internal/cache"
	"coachhub/internal/models"

	"go.uber.org/zap"
)

const badgeCachePrefix = "badges:"

// CachedBadgeRepository serves catalog reads from a cache and falls
// through to the wrapped repository on a miss
type CachedBadgeRepository struct {
	next   BadgeRepository
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedBadgeRepository wraps next with cache. A ttl <= 0 uses the
// cache default.
func NewCachedBadgeRepository(next BadgeRepository, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedBadgeRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedBadgeRepository{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

func sportCacheKey(sport string) string {
	return badgeCachePrefix + "sport:" + strings.ToLower(sport)
}

func badgeCacheKey(id int64) string {
	return fmt.Sprintf("%sid:%d", badgeCachePrefix, id)
}

func (r *CachedBadgeRepository) ListActiveForSport(ctx context.Context, sport string) ([]*models.Badge, error) {
	key := sportCacheKey(sport)

	var badges []*models.Badge
	if r.load(ctx, key, &badges) {
		return badges, nil
	}

	badges, err := r.next.ListActiveForSport(ctx, sport)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, badges)
	return badges, nil
}

func (r *CachedBadgeRepository) GetByID(ctx context.Context, id int64) (*models.Badge, error) {
	key := badgeCacheKey(id)

	var badge models.Badge
	if r.load(ctx, key, &badge) {
		return &badge, nil
	}

	b, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, b)
	return b, nil
}

// Invalidate drops every cached catalog entry
func (r *CachedBadgeRepository) Invalidate(ctx context.Context) error {
	if err := r.cache.DeletePrefix(ctx, badgeCachePrefix); err != nil {
		return fmt.Errorf("invalidate badge cache: %w", err)
	}
	r.logger.Info("Badge cache invalidated")
	return nil
}

func (r *CachedBadgeRepository) load(ctx context.Context, key string, dst interface{}) bool {
	raw, ok := r.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		r.logger.Warn("Dropping undecodable cache entry",
			zap.String("key", key),
			zap.Error(err),
		)
		_ = r.cache.Delete(ctx, key)
		return false
	}
	return true
}

// store is best effort; a cache failure never fails the read
func (r *CachedBadgeRepository) store(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		r.logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
		r.logger.Warn("Failed to populate badge cache", zap.String("key", key), zap.Error(err))
	}
}
