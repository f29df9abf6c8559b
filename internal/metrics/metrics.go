package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// QueriesTotal counts routed queries by backend and cache outcome.
var QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "irouter",
	Name:      "queries_total",
	Help:      "Total number of queries routed, labeled by backend and cache outcome.",
}, []string{"backend", "cache"})

// QueryErrors counts failed queries by error code.
var QueryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "irouter",
	Name:      "query_errors_total",
	Help:      "Total number of failed queries, labeled by error code.",
}, []string{"code"})

// QueryDuration observes end-to-end query latency by backend.
var QueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "irouter",
	Name:      "query_duration_seconds",
	Help:      "End-to-end query latency by backend.",
	Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
}, []string{"backend"})

// PartitionsScanned observes how many partitions each query scanned.
var PartitionsScanned = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "irouter",
	Name:      "partitions_scanned",
	Help:      "Partitions scanned per query after pruning.",
	Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
})

// PruningRatio observes the fraction of partitions eliminated per query.
var PruningRatio = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "irouter",
	Name:      "pruning_ratio",
	Help:      "Fraction of partitions eliminated by pruning per query.",
	Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
})

// CacheSize tracks the current number of cached results.
var CacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "irouter",
	Name:      "cache_entries",
	Help:      "Current number of entries in the result cache.",
})

// Init registers all metrics with the default Prometheus registry.
// Keeping registration centralized makes adding new metrics straightforward later.
func Init() {
	prometheus.MustRegister(
		QueriesTotal,
		QueryErrors,
		QueryDuration,
		PartitionsScanned,
		PruningRatio,
		CacheSize,
	)
}
