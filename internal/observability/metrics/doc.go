// Package metrics centralizes the crawl control plane's Prometheus series:
// regulator tick health, scheduler fairness, fetch throughput, splitter
// throughput, and halt-audit database query duration.
//
// All metrics are registered with the default Prometheus registry via
// promauto and exposed on the process's /metrics endpoint.
//
// Example usage:
//
//	import "crawlctl/internal/observability/metrics"
//
//	func recordSweep(source string, duration time.Duration) {
//	    metrics.CrawlSchedulerInFlight.WithLabelValues(source).Set(0)
//	    metrics.RecordOperationDuration("scheduler_sweep", duration)
//	}
package metrics
