package source

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPageCache is a PageCache backed by Redis.
type RedisPageCache struct {
	redis *redis.Client
}

// NewRedisPageCache creates a Redis-backed page cache.
func NewRedisPageCache(redisClient *redis.Client) *RedisPageCache {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisPageCache{
		redis: redisClient,
	}
}

// Get retrieves the raw entry stored under key.
// Returns ErrCacheMiss if the key doesn't exist.
func (c *RedisPageCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set stores data under key with the given TTL.
// Entries with a non-positive TTL are not cached.
func (c *RedisPageCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the entry stored under key.
func (c *RedisPageCache) Delete(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
