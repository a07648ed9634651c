// Package metrics centralizes the Prometheus series the crawl control plane
// exposes: regulator tick health, scheduler fairness, fetch throughput, and
// the splitter's throughput. All metrics are registered with the default
// Prometheus registry via promauto and exposed on the process's /metrics
// endpoint (internal/infra/worker).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CrawlTokensCurrent tracks the most recent token count written for a
	// source by the regulator's replenishment step (§4.2).
	CrawlTokensCurrent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crawl_tokens_current",
			Help: "Current token bucket value per source after the last regulator tick",
		},
		[]string{"source"},
	)

	// CrawlRateTarget tracks the merged (catalog + override) requests-per-second
	// target the regulator computed for a source on its last tick.
	CrawlRateTarget = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crawl_rate_target",
			Help: "Merged requests-per-second target per source",
		},
		[]string{"source"},
	)

	// CrawlHaltsTotal counts halts tripped by the regulator, labeled by
	// halt type (temporary/permanent) and source.
	CrawlHaltsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_halts_total",
			Help: "Total number of halts tripped by the rate regulator",
		},
		[]string{"source", "type"},
	)

	// CrawlRegulatorTickDuration measures wall-clock time for one full
	// regulator tick (recompute + override-merge + error-check + replenish).
	CrawlRegulatorTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawl_regulator_tick_duration_seconds",
			Help:    "Duration of a single regulator tick",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	// CrawlSchedulerShare tracks the per-source concurrency share the
	// scheduler computed on its last pass.
	CrawlSchedulerShare = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawl_scheduler_share",
			Help: "Per-source fetch task share computed on the last scheduler pass",
		},
	)

	// CrawlSchedulerInFlight tracks in-flight fetch tasks per source after
	// the last scheduler sweep.
	CrawlSchedulerInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crawl_scheduler_in_flight",
			Help: "In-flight fetch task count per source",
		},
		[]string{"source"},
	)

	// CrawlFetchDuration measures HTTP GET latency for fetch attempts.
	CrawlFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawl_fetch_duration_seconds",
			Help:    "Duration of a single fetch HTTP GET",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// CrawlFetchOutcomesTotal counts fetch outcomes by source and status
	// code (or UnidentifiedImageError).
	CrawlFetchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_fetch_outcomes_total",
			Help: "Total fetch outcomes by source and status code",
		},
		[]string{"source", "code"},
	)

	// CrawlSplitTotal counts inbound messages republished onto per-source
	// topics by the splitter.
	CrawlSplitTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crawl_split_total",
			Help: "Total inbound messages republished onto per-source topics",
		},
	)

	// CrawlSplitDropped counts malformed inbound messages discarded by the
	// splitter.
	CrawlSplitDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crawl_split_dropped_total",
			Help: "Total malformed inbound messages discarded by the splitter",
		},
	)

	// DBQueryDuration measures halt-audit repository query duration.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Halt-audit database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active halt-audit database connections.
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active halt-audit database connections",
		},
	)
)

// RecordOperationDuration records the duration of a named halt-audit
// database operation.
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
