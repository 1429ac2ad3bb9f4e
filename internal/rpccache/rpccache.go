// Package rpccache is a short-TTL redis cache for query results that
// are immutable once observed (mined receipts, blocks fetched by
// number). It only ever caches values that already passed consensus;
// a cache hit is a replay of a previously agreed answer, never a way
// around the reduction layer.
package rpccache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get loads the cached value for key into v. The bool reports a hit;
// redis failures are returned so callers can log them, but a miss is
// not an error.
func (c *Cache) Get(ctx context.Context, key string, v any) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("rpccache get: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("rpccache decode: %w", err)
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("rpccache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, c.redisKey(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("rpccache set: %w", err)
	}
	return nil
}

func (c *Cache) redisKey(key string) string {
	return "rpccache:" + key
}
