package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/bryanwahyu/bloodreport-ai/internal/metrics"
)

// KeyPrefix namespaces cache entries away from queue and task keys.
const KeyPrefix = "cache:"

var ErrCacheMiss = errors.New("cache miss")

type Cache struct {
	redis  *redis.Client
	prefix string
}

func NewCache(redis *redis.Client, prefix string) *Cache {
	return &Cache{
		redis:  redis,
		prefix: prefix,
	}
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		metrics.CacheMiss()
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return errors.Wrap(err, "failed to get from cache")
	}

	if err := json.Unmarshal(data, dest); err != nil {
		metrics.CacheMiss()
		return errors.Wrap(err, "failed to unmarshal cached data")
	}
	metrics.CacheHit()
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal data for cache")
	}

	if err := c.redis.Set(ctx, c.prefix+key, data, expiration).Err(); err != nil {
		return errors.Wrap(err, "failed to set cache")
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	if err := c.redis.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, "failed to delete from cache")
	}
	return nil
}

// DeletePattern removes every key matching the glob, e.g. "analysis:12:*".
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.redis.Scan(ctx, 0, c.prefix+pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return errors.Wrap(err, "failed to delete cache pattern")
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "failed to iterate over cache keys")
	}
	return nil
}

// Noop is used when redis is disabled; every Get misses.
type Noop struct{}

func (Noop) Get(context.Context, string, interface{}) error {
	metrics.CacheMiss()
	return ErrCacheMiss
}
func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (Noop) Delete(context.Context, ...string) error                      { return nil }
func (Noop) DeletePattern(context.Context, string) error                  { return nil }
