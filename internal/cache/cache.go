// internal/cache/cache.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ===============================
// CACHE INTERFACE
// ===============================

// Cache stores opaque byte payloads under string keys. Callers own the
// encoding of what they store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value for ttl; a ttl <= 0 uses the cache default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	Stats(ctx context.Context) (*CacheStats, error)
	Health(ctx context.Context) error
	Close() error
}

// CacheStats represents cache statistics
type CacheStats struct {
	Hits     int64         `json:"hits"`
	Misses   int64         `json:"misses"`
	Sets     int64         `json:"sets"`
	Deletes  int64         `json:"deletes"`
	Keys     int64         `json:"keys"`
	HitRatio float64       `json:"hit_ratio"`
	Uptime   time.Duration `json:"uptime"`
}

// ErrClosed is returned by operations on a closed cache
var ErrClosed = errors.New("cache is closed")

// ===============================
// CACHE CONFIGURATION
// ===============================

// Config holds cache configuration
type Config struct {
	Provider    string        `json:"provider" yaml:"provider"` // "memory", "redis"
	TTL         time.Duration `json:"ttl" yaml:"ttl"`
	MaxKeys     int           `json:"max_keys" yaml:"max_keys"`
	RedisURL    string        `json:"redis_url" yaml:"redis_url"`
	KeyPrefix   string        `json:"key_prefix" yaml:"key_prefix"`
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:    "memory",
		TTL:         5 * time.Minute,
		MaxKeys:     256,
		DialTimeout: 5 * time.Second,
	}
}

// NewCache creates a new cache instance based on configuration
func NewCache(config *Config, logger *zap.Logger) (Cache, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(config.Provider) {
	case "redis":
		return NewRedisCache(config, logger)
	case "memory", "":
		logger.Info("Using in-memory cache", zap.Int("max_keys", config.MaxKeys))
		return NewMemoryCache(config, logger)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", config.Provider)
	}
}

// ===============================
// MEMORY CACHE IMPLEMENTATION
// ===============================

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memoryCache struct {
	items     *lru.Cache[string, memoryEntry]
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
	startTime time.Time
	closed    atomic.Bool

	mu      sync.Mutex
	hits    int64
	misses  int64
	sets    int64
	deletes int64
}

// NewMemoryCache creates an in-process LRU cache. Expired entries are
// dropped lazily on read.
func NewMemoryCache(config *Config, logger *zap.Logger) (Cache, error) {
	return newMemoryCache(config, logger, time.Now)
}

func newMemoryCache(config *Config, logger *zap.Logger, now func() time.Time) (*memoryCache, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	size := config.MaxKeys
	if size <= 0 {
		size = DefaultConfig().MaxKeys
	}

	items, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}

	return &memoryCache{
		items:     items,
		ttl:       config.TTL,
		logger:    logger,
		now:       now,
		startTime: now(),
	}, nil
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	if c.closed.Load() {
		return nil, false
	}

	entry, ok := c.items.Get(key)
	if ok && !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.items.Remove(key)
		ok = false
	}

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if !ok {
		return nil, false
	}
	return entry.value, true
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.items.Add(key, entry)

	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	if c.items.Remove(key) {
		c.mu.Lock()
		c.deletes++
		c.mu.Unlock()
	}
	return nil
}

func (c *memoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	for _, key := range c.items.Keys() {
		if strings.HasPrefix(key, prefix) {
			_ = c.Delete(ctx, key)
		}
	}
	return nil
}

func (c *memoryCache) Stats(context.Context) (*CacheStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := &CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		Sets:    c.sets,
		Deletes: c.deletes,
		Keys:    int64(c.items.Len()),
		Uptime:  c.now().Sub(c.startTime),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRatio = float64(c.hits) / float64(total)
	}
	return stats, nil
}

func (c *memoryCache) Health(context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (c *memoryCache) Close() error {
	c.closed.Store(true)
	c.items.Purge()
	return nil
}

// ===============================
// REDIS CACHE IMPLEMENTATION
// ===============================

type redisCache struct {
	client redis.UniversalClient
	logger *zap.Logger
	ttl    time.Duration
	prefix string

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	start  time.Time
}

// NewRedisCache connects to Redis and verifies the connection with a ping
func NewRedisCache(config *Config, logger *zap.Logger) (Cache, error) {
	if config == nil {
		return nil, fmt.Errorf("cache config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	options, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(options)

	timeout := config.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis cache initialized",
		zap.String("addr", options.Addr),
		zap.Int("db", options.DB),
	)
	return NewRedisCacheFromClient(client, config, logger), nil
}

// NewRedisCacheFromClient wraps an existing client without pinging it
func NewRedisCacheFromClient(client redis.UniversalClient, config *Config, logger *zap.Logger) Cache {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisCache{
		client: client,
		logger: logger,
		ttl:    config.TTL,
		prefix: config.KeyPrefix,
		start:  time.Now(),
	}
}

func (r *redisCache) key(k string) string {
	return r.prefix + k
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Error("Failed to get from Redis",
				zap.String("key", key),
				zap.Error(err))
		}
		r.misses.Add(1)
		return nil, false
	}
	r.hits.Add(1)
	return val, true
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	r.sets.Add(1)
	return nil
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// DeletePrefix walks matching keys with SCAN rather than KEYS so large
// keyspaces do not block the server.
func (r *redisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, r.key(prefix)+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (r *redisCache) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
		Sets:   r.sets.Load(),
		Uptime: time.Since(r.start),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRatio = float64(stats.Hits) / float64(total)
	}
	if n, err := r.client.DBSize(ctx).Result(); err == nil {
		stats.Keys = n
	}
	return stats, nil
}

func (r *redisCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
