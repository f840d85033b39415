package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const statsTTL = 60 * time.Second

// StatsCache is a read-through Redis cache for stats responses. A nil
// *StatsCache is valid and disables caching, so callers never branch on
// whether Redis is configured.
type StatsCache struct {
	rdb *redis.Client
}

func NewStatsCache(redisURL string) (*StatsCache, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return &StatsCache{rdb: redis.NewClient(opts)}, nil
}

func NewStatsCacheFromClient(rdb *redis.Client) *StatsCache {
	return &StatsCache{rdb: rdb}
}

func key(userID int, scope string) string {
	return fmt.Sprintf("moodlog:stats:%d:%s", userID, scope)
}

// Get returns the cached JSON payload for (user, scope), or ok=false on miss
// or any Redis error. Cache failures never fail a request.
func (c *StatsCache) Get(ctx context.Context, userID int, scope string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key(userID, scope)).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (c *StatsCache) Set(ctx context.Context, userID int, scope string, payload []byte) {
	if c == nil {
		return
	}
	_ = c.rdb.Set(ctx, key(userID, scope), payload, statsTTL).Err()
}

// Invalidate drops all cached stats for a user after an entry write.
func (c *StatsCache) Invalidate(ctx context.Context, userID int) {
	if c == nil {
		return
	}
	pattern := fmt.Sprintf("moodlog:stats:%d:*", userID)
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		_ = c.rdb.Del(ctx, iter.Val()).Err()
	}
}

// Ping verifies connectivity at startup.
func (c *StatsCache) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("stats cache disabled")
	}
	return c.rdb.Ping(ctx).Err()
}
