package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bugtracker/bugtracker/internal/core/domain"
	"github.com/bugtracker/bugtracker/internal/core/ports"
)

const scanCount = 500

// ResultCache implements ports.ResultCache on Redis.
// Key format: <namespace>:<class>:<suffix>, e.g. bugtracker:list:9f86d081884c7d65
type ResultCache struct {
	client    redis.UniversalClient
	namespace string
}

func NewResultCache(client redis.UniversalClient, namespace string) *ResultCache {
	return &ResultCache{client: client, namespace: namespace}
}

func (c *ResultCache) key(k string) string {
	if c.namespace == "" {
		return k
	}
	return c.namespace + ":" + k
}

func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ports.ErrCacheMiss
	}
	if err != nil {
		return nil, domain.Unavailable("cache get", err)
	}
	return v, nil
}

// Set stores value with an expiry of ttl (SET key value EX ttl).
func (c *ResultCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return domain.Unavailable("cache set", err)
	}
	return nil
}

func (c *ResultCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Unlink(ctx, full...).Err(); err != nil {
		return domain.Unavailable("cache delete", err)
	}
	return nil
}

// DeleteByPrefix walks the keyspace with SCAN and unlinks every match, one
// batch at a time. Keys written after the walk passed them survive.
func (c *ResultCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	pattern := c.key(prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return domain.Unavailable("cache scan", err)
		}
		if len(keys) > 0 {
			if err := c.client.Unlink(ctx, keys...).Err(); err != nil {
				return domain.Unavailable("cache unlink", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *ResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
