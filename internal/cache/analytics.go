// Package cache stores per-user analytics in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"example.com/healthanalysis/internal/domain"
	"example.com/healthanalysis/internal/logger"
)

const keyPrefix = "health:analytics"

var _ domain.AnalyticsCache = (*RedisAnalyticsCache)(nil)

// RedisAnalyticsCache implements domain.AnalyticsCache with JSON values under a TTL.
type RedisAnalyticsCache struct {
	rdb *goredis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewRedisAnalyticsCache dials addr and verifies the connection with a ping.
func NewRedisAnalyticsCache(ctx context.Context, addr string, ttl time.Duration, log *logger.Logger) (*RedisAnalyticsCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisAnalyticsCache{rdb: rdb, ttl: ttl, log: log.With("component", "AnalyticsCache")}, nil
}

// Key returns the Redis key holding the owner's analytics.
func Key(owner domain.Owner) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, owner.TenantID, owner.UserID)
}

// Get implements domain.AnalyticsCache.
func (c *RedisAnalyticsCache) Get(ctx context.Context, owner domain.Owner) (*domain.Analytics, bool, error) {
	raw, err := c.rdb.Get(ctx, Key(owner)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var analytics domain.Analytics
	if err := json.Unmarshal(raw, &analytics); err != nil {
		c.log.Warn("discarding unreadable analytics entry", "key", Key(owner), "error", err)
		return nil, false, nil
	}
	return &analytics, true, nil
}

// Set implements domain.AnalyticsCache.
func (c *RedisAnalyticsCache) Set(ctx context.Context, owner domain.Owner, analytics domain.Analytics) error {
	raw, err := json.Marshal(analytics)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, Key(owner), raw, c.ttl).Err()
}

// Invalidate implements domain.AnalyticsCache.
func (c *RedisAnalyticsCache) Invalidate(ctx context.Context, owner domain.Owner) error {
	return c.rdb.Del(ctx, Key(owner)).Err()
}

// Close releases the Redis connection pool.
func (c *RedisAnalyticsCache) Close() error {
	return c.rdb.Close()
}
