// Package metrics defines and registers all custom Prometheus metrics for the
// bug tracker. It is the single source of truth for metric names, labels and
// help strings. Metrics register with the default registry on package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bugtracker"

// ── Cache metrics ─────────────────────────────────────────────────────────────

// CacheLookupsTotal counts read-through lookups.
// Labels:
//   - class: "bug", "list" or "stats"
//   - result: "hit", "miss" or "error" (an error is served as a miss)
var CacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Total number of read-through cache lookups, by key class and result.",
	},
	[]string{"class", "result"},
)

// CacheInvalidationsTotal counts invalidation sweeps.
// Label:
//   - result: "ok", "failed", "requeued" or "dropped"
var CacheInvalidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidations_total",
		Help:      "Total number of cache invalidation attempts, by result.",
	},
	[]string{"result"},
)

// InvalidationQueueDepth is the number of failed invalidations waiting for retry.
var InvalidationQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "invalidation_queue_depth",
		Help:      "Current number of invalidations pending retry.",
	},
)

// ── Store metrics ─────────────────────────────────────────────────────────────

// BugMutationsTotal counts successful bug mutations.
// Label:
//   - op: "create", "update", "delete" or "comment"
var BugMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bug_mutations_total",
		Help:      "Total number of acknowledged bug mutations, by operation.",
	},
	[]string{"op"},
)

// StoreErrorsTotal counts store failures surfaced to callers.
// Label:
//   - op: the failing repository operation (e.g. "bug_create", "user_delete")
var StoreErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_errors_total",
		Help:      "Total number of document store errors, by operation.",
	},
	[]string{"op"},
)
