package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheNamespace  = "cache:"
	defaultCacheTTL = 5 * time.Minute
	scanBatch       = 100

	// Generation counters live outside cacheNamespace so DeletePrefix never
	// resets them.
	genNamespace = "cachegen:"
)

// ListCache stores JSON-encoded values under "cache:<key>" with a fixed TTL.
type ListCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListCache creates a ListCache. If ttl <= 0, defaultCacheTTL is used.
func NewListCache(client *redis.Client, ttl time.Duration) *ListCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &ListCache{client: client, ttl: ttl}
}

func (c *ListCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.client.Get(ctx, cacheNamespace+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	return true, nil
}

func (c *ListCache) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheNamespace+key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// DeletePrefix removes every cached key starting with prefix. It walks the
// keyspace with SCAN rather than KEYS so large keyspaces do not block Redis.
func (c *ListCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, cacheNamespace+prefix+"*", scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("cache delete: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("cache delete: %w", err)
		}
	}
	return nil
}

// Generation returns the counter for prefix. A missing counter is 0.
func (c *ListCache) Generation(ctx context.Context, prefix string) (int64, error) {
	n, err := c.client.Get(ctx, genNamespace+prefix).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache generation: %w", err)
	}
	return n, nil
}

// Bump advances the counter for prefix. The counter has no TTL.
func (c *ListCache) Bump(ctx context.Context, prefix string) error {
	if err := c.client.Incr(ctx, genNamespace+prefix).Err(); err != nil {
		return fmt.Errorf("cache bump: %w", err)
	}
	return nil
}
