package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bugtracker/bugtracker/internal/core/cache"
	"github.com/bugtracker/bugtracker/internal/pkg/metrics"
)

const (
	defaultWorkers   = 2
	defaultAttempts  = 3
	defaultBuffer    = 256
	defaultBaseDelay = 200 * time.Millisecond
)

// Applier executes one invalidation sweep.
type Applier interface {
	Apply(ctx context.Context, s cache.Sweep) error
}

// Options tunes the retry queue. Zero values fall back to defaults.
type Options struct {
	Workers   int
	Attempts  int
	Buffer    int
	BaseDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.Attempts <= 0 {
		o.Attempts = defaultAttempts
	}
	if o.Buffer <= 0 {
		o.Buffer = defaultBuffer
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	return o
}

// RetryQueue re-applies failed invalidation sweeps on a fixed worker pool.
// It implements cache.Retrier. When the buffer is full new sweeps are dropped
// and the affected entries expire by TTL instead.
type RetryQueue struct {
	jobs    chan cache.Sweep
	applier Applier
	opts    Options
	log     zerolog.Logger
}

func NewRetryQueue(applier Applier, opts Options, log zerolog.Logger) *RetryQueue {
	opts = opts.withDefaults()
	return &RetryQueue{
		jobs:    make(chan cache.Sweep, opts.Buffer),
		applier: applier,
		opts:    opts,
		log:     log,
	}
}

// Start launches the workers. They stop when ctx is cancelled; sweeps still
// buffered at that point are abandoned.
func (q *RetryQueue) Start(ctx context.Context) {
	for i := 0; i < q.opts.Workers; i++ {
		go q.runWorker(ctx, i)
	}
}

// Retry enqueues s without blocking and reports whether it was accepted.
func (q *RetryQueue) Retry(s cache.Sweep) bool {
	select {
	case q.jobs <- s:
		metrics.InvalidationQueueDepth.Inc()
		return true
	default:
		q.log.Warn().
			Strs("keys", s.Keys).
			Strs("prefixes", s.Prefixes).
			Msg("invalidation retry queue full, dropping sweep")
		return false
	}
}

// Len is the number of sweeps waiting for a worker.
func (q *RetryQueue) Len() int {
	return len(q.jobs)
}

func (q *RetryQueue) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-q.jobs:
			metrics.InvalidationQueueDepth.Dec()
			q.process(ctx, id, s)
		}
	}
}

func (q *RetryQueue) process(ctx context.Context, id int, s cache.Sweep) {
	delay := q.opts.BaseDelay
	var err error
	for attempt := 1; attempt <= q.opts.Attempts; attempt++ {
		if err = q.applier.Apply(ctx, s); err == nil {
			metrics.CacheInvalidationsTotal.WithLabelValues("ok").Inc()
			q.log.Debug().Int("worker_id", id).Int("attempt", attempt).Msg("invalidation retry succeeded")
			return
		}
		if attempt == q.opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}

	metrics.CacheInvalidationsTotal.WithLabelValues("dropped").Inc()
	q.log.Error().Err(err).
		Int("worker_id", id).
		Int("attempts", q.opts.Attempts).
		Strs("prefixes", s.Prefixes).
		Msg("invalidation retry exhausted, entries will expire by TTL")
}
