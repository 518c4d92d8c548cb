// Package metrics holds the Prometheus collectors the scheduler updates
// as a run progresses. Every run shares the same process-wide
// collectors (label cardinality comes from step and connector names, not
// run IDs, to keep the metric set bounded across a long-lived daemon).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowctl_step_duration_seconds",
			Help:    "Duration of step execution from running to terminal",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"connector_type", "status"},
	)

	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowctl_steps_total",
			Help: "Total steps reaching a terminal status",
		},
		[]string{"status"},
	)

	ConnectorCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowctl_connector_call_errors_total",
			Help: "Total connector Call errors by connector type",
		},
		[]string{"connector_type"},
	)

	RunsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowctl_runs_in_flight",
		Help: "Number of runs currently executing",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowctl_run_duration_seconds",
		Help:    "Duration of a full run from start to completion",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordStep records one step's terminal outcome.
func RecordStep(connectorType, status string, durationSeconds float64) {
	StepDuration.WithLabelValues(connectorType, status).Observe(durationSeconds)
	StepsTotal.WithLabelValues(status).Inc()
}
