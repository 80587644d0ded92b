// Package metrics holds the Prometheus collectors shared by the engine and servers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wordsync"

// Cache tiers.
const (
	TierMemory     = "memory"
	TierPersistent = "persistent"
	TierOrigin     = "origin"
)

var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "word_cache_lookups_total",
			Help:      "Word lookups by the tier that answered, or miss.",
		},
		[]string{"tier", "outcome"},
	)

	MemoryCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "word_cache_evictions_total",
			Help:      "Entries evicted from the in-memory word cache.",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_queue_depth",
			Help:      "Pending mutations in the durable sync queue.",
		},
	)

	QueueEntriesDrainedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_queue_drained_total",
			Help:      "Queue entries replayed against the remote, by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	SyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syncs_total",
			Help:      "Full sync cycles by outcome (ok, partial, skipped).",
		},
		[]string{"outcome"},
	)

	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Requests sent to the authoritative store API, by HTTP method.",
		},
		[]string{"method", "outcome"},
	)
)

// Outcome labels.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomePartial = "partial"
	OutcomeSkipped = "skipped"
)
