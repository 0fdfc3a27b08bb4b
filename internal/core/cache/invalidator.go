package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bugtracker/bugtracker/internal/core/ports"
	"github.com/bugtracker/bugtracker/internal/pkg/metrics"
)

// Sweep is one unit of invalidation: exact keys plus whole key prefixes.
type Sweep struct {
	Keys     []string
	Prefixes []string
}

// Retrier accepts sweeps that failed and retries them later. Retry reports
// false when the sweep could not be queued.
type Retrier interface {
	Retry(s Sweep) bool
}

// Invalidator drops every cache entry a mutation could have made stale.
// Rather than tracking which lists contain which bug, each mutation removes
// the per-bug keys and sweeps the list and stats classes wholesale.
//
// A reader that misses concurrently with a mutation may repopulate a list
// from pre-mutation state after the sweep ran. That entry is not swept again
// and lives at most one list TTL.
type Invalidator struct {
	store   ports.ResultCache
	timeout time.Duration
	retry   Retrier
	logger  zerolog.Logger
}

func NewInvalidator(store ports.ResultCache, opTimeout time.Duration, logger zerolog.Logger) *Invalidator {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &Invalidator{store: store, timeout: opTimeout, logger: logger}
}

// SetRetrier installs the queue that receives failed sweeps.
func (i *Invalidator) SetRetrier(r Retrier) {
	i.retry = r
}

// BugsChanged invalidates the detail entries of ids and every list and stats entry.
func (i *Invalidator) BugsChanged(ctx context.Context, ids ...string) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, BugKey(id))
	}
	i.run(ctx, Sweep{Keys: keys, Prefixes: []string{ClassList.Prefix(), ClassStats.Prefix()}})
}

// Everything invalidates every bug, list and stats entry. Used when a change
// can touch an unbounded set of bugs, such as deleting or renaming a user.
func (i *Invalidator) Everything(ctx context.Context) {
	i.run(ctx, Sweep{Prefixes: []string{ClassBug.Prefix(), ClassList.Prefix(), ClassStats.Prefix()}})
}

// run applies s synchronously. It never fails the caller: the mutation that
// triggered it is already committed.
func (i *Invalidator) run(ctx context.Context, s Sweep) {
	err := i.Apply(context.WithoutCancel(ctx), s)
	if err == nil {
		metrics.CacheInvalidationsTotal.WithLabelValues("ok").Inc()
		return
	}

	metrics.CacheInvalidationsTotal.WithLabelValues("failed").Inc()
	i.logger.Warn().Err(err).
		Strs("keys", s.Keys).
		Strs("prefixes", s.Prefixes).
		Msg("cache invalidation failed, entries will expire by TTL")

	if i.retry == nil {
		return
	}
	if i.retry.Retry(s) {
		metrics.CacheInvalidationsTotal.WithLabelValues("requeued").Inc()
		return
	}
	metrics.CacheInvalidationsTotal.WithLabelValues("dropped").Inc()
}

// Apply deletes the keys and prefixes of s, each call bounded by the op timeout.
// Every part is attempted; the failures are joined.
func (i *Invalidator) Apply(ctx context.Context, s Sweep) error {
	var errs []error
	if len(s.Keys) > 0 {
		opCtx, cancel := context.WithTimeout(ctx, i.timeout)
		if err := i.store.Delete(opCtx, s.Keys...); err != nil {
			errs = append(errs, fmt.Errorf("delete keys: %w", err))
		}
		cancel()
	}
	for _, prefix := range s.Prefixes {
		opCtx, cancel := context.WithTimeout(ctx, i.timeout)
		if err := i.store.DeleteByPrefix(opCtx, prefix); err != nil {
			errs = append(errs, fmt.Errorf("delete prefix %q: %w", prefix, err))
		}
		cancel()
	}
	return errors.Join(errs...)
}
