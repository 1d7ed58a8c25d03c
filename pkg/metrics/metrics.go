package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	vsanHealth = "vsan_health"

	// Collector metrics
	collectorDurationSeconds = "collector_duration_seconds"
	collectorRunsTotal       = "collector_runs_total"

	// Labels
	subsystemLabel = "subsystem"
	outcomeLabel   = "outcome"
)

// Collector outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeAbandoned = "abandoned"
)

var collectorLabels = []string{
	subsystemLabel,
	outcomeLabel,
}

// registry holds the metrics of this process only. The node_exporter textfile
// collector rejects the go_ and process_ families of the default registry.
var registry = prometheus.NewRegistry()

/**
* Metrics definition
**/
var collectorDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: vsanHealth,
		Name:      collectorDurationSeconds,
		Help:      "duration of a collector run in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	},
	collectorLabels,
)

var collectorRunsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: vsanHealth,
		Name:      collectorRunsTotal,
		Help:      "number of collector runs by outcome",
	},
	collectorLabels,
)

func ObserveCollectorRun(subsystem, outcome string, duration time.Duration) {
	labels := prometheus.Labels{
		subsystemLabel: subsystem,
		outcomeLabel:   outcome,
	}
	collectorDurationMetric.With(labels).Observe(duration.Seconds())
	collectorRunsTotalMetric.With(labels).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	registry.MustRegister(collectorDurationMetric)
	registry.MustRegister(collectorRunsTotalMetric)
}
