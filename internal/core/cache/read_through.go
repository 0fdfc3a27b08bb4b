// Package cache implements the read-through result cache and the
// invalidation coordinator on top of a ports.ResultCache backend.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/bugtracker/bugtracker/internal/core/ports"
	"github.com/bugtracker/bugtracker/internal/pkg/metrics"
)

// DefaultOpTimeout bounds every individual cache call.
const DefaultOpTimeout = 250 * time.Millisecond

// FetchFn loads a value from the store of record on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// ReadThrough consults the cache before the store and populates it on a miss.
// Cache failures are served as misses; only store failures reach the caller.
type ReadThrough struct {
	store   ports.ResultCache
	timeout time.Duration
	logger  zerolog.Logger
}

func NewReadThrough(store ports.ResultCache, opTimeout time.Duration, logger zerolog.Logger) *ReadThrough {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &ReadThrough{store: store, timeout: opTimeout, logger: logger}
}

// Fetch returns the cached value for key or, on a miss, the result of fetch,
// which is then cached for ttl. Errors from fetch are returned and never cached.
// Empty results are cached like any other.
func Fetch[T any](ctx context.Context, rt *ReadThrough, class Class, key string, ttl time.Duration, fetch FetchFn[T]) (T, error) {
	if v, ok := lookup[T](ctx, rt, class, key); ok {
		return v, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		rt.logger.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return v, nil
	}
	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rt.timeout)
	defer cancel()
	if err := rt.store.Set(setCtx, key, payload, ttl); err != nil {
		rt.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return v, nil
}

func lookup[T any](ctx context.Context, rt *ReadThrough, class Class, key string) (T, bool) {
	var v T

	getCtx, cancel := context.WithTimeout(ctx, rt.timeout)
	defer cancel()

	raw, err := rt.store.Get(getCtx, key)
	switch {
	case errors.Is(err, ports.ErrCacheMiss):
		metrics.CacheLookupsTotal.WithLabelValues(string(class), "miss").Inc()
		rt.logger.Debug().Str("key", key).Msg("cache miss")
		return v, false
	case err != nil:
		metrics.CacheLookupsTotal.WithLabelValues(string(class), "error").Inc()
		rt.logger.Warn().Err(err).Str("key", key).Msg("cache get failed, falling through to store")
		return v, false
	}

	if err := json.Unmarshal(raw, &v); err != nil {
		metrics.CacheLookupsTotal.WithLabelValues(string(class), "error").Inc()
		rt.logger.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		_ = rt.store.Delete(getCtx, key)
		var zero T
		return zero, false
	}
	metrics.CacheLookupsTotal.WithLabelValues(string(class), "hit").Inc()
	rt.logger.Debug().Str("key", key).Msg("cache hit")
	return v, true
}
