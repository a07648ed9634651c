// Package slo tracks the crawl control plane's service level objectives:
// fetch availability (the fraction of outcomes that are expected statuses),
// error rate, and regulator tick latency against fixed targets.
package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets. Gauges below report current measurements against these.
const (
	// AvailabilitySLO is the target percentage of fetch outcomes that are
	// expected statuses (99.9, i.e. 99.9%).
	AvailabilitySLO = 99.9

	// LatencyP95SLO is the target 95th percentile regulator tick duration
	// in seconds. The 1s tick interval leaves little headroom.
	LatencyP95SLO = 0.200

	// LatencyP99SLO is the target 99th percentile regulator tick duration
	// in seconds.
	LatencyP99SLO = 0.500

	// ErrorRateSLO is the maximum acceptable fraction of fetch outcomes
	// that are unexpected statuses.
	ErrorRateSLO = 0.001
)

// SLO tracking gauges, updated by the structured logger (C7) each tick from
// the coordination store's cumulative outcome counters, and by the
// regulator from its own tick duration.
var (
	SLOAvailability = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_availability_ratio",
			Help: "Current fraction of fetch outcomes that are expected statuses, target: 0.999",
		},
	)

	SLOLatencyP95 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_latency_p95_seconds",
			Help: "Most recently observed regulator tick duration in seconds, target: 0.200",
		},
	)

	SLOLatencyP99 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_latency_p99_seconds",
			Help: "Most recently observed regulator tick duration in seconds, target: 0.500",
		},
	)

	SLOErrorRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_error_rate_ratio",
			Help: "Current fraction of fetch outcomes that are unexpected statuses, target: 0.001",
		},
	)
)

// UpdateAvailability sets the current fetch availability ratio.
func UpdateAvailability(ratio float64) {
	SLOAvailability.Set(ratio)
}

// UpdateLatencyP95 records the most recent tick duration as a stand-in for
// a true p95; this process does not aggregate histogram quantiles itself,
// so the value is the latest sample rather than a windowed percentile.
func UpdateLatencyP95(seconds float64) {
	SLOLatencyP95.Set(seconds)
}

// UpdateLatencyP99 records the most recent tick duration, same caveat as
// UpdateLatencyP95.
func UpdateLatencyP99(seconds float64) {
	SLOLatencyP99.Set(seconds)
}

// UpdateErrorRate sets the current fetch error ratio.
func UpdateErrorRate(ratio float64) {
	SLOErrorRate.Set(ratio)
}
