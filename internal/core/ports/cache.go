package ports

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by ResultCache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// ResultCache is a key/value store with per-entry expiry. Operations are
// independent; there are no cross-key transactions.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}
