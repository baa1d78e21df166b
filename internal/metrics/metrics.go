// Package metrics exposes observational-only Prometheus instrumentation
// for flow and node execution. Nothing in this package may influence
// control flow — every call is wrapped so a metrics failure can never
// surface as an execution failure (§4.5 "Duration measurement is
// observational only").
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fluxDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flux",
		Name:      "flux_duration_seconds",
		Help:      "Duration of a full flux execution, by flux key.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"flux"})

	nodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flux",
		Name:      "node_duration_seconds",
		Help:      "Duration of a single node's execution, by node type and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"node_type", "outcome"})

	nodeExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flux",
		Name:      "node_executions_total",
		Help:      "Count of node executions, by node type and outcome.",
	}, []string{"node_type", "outcome"})
)

// ObserveFluxDuration records the wall-clock time of one complete flux
// run. Panics are recovered so a metrics-registry defect can never
// propagate into the executor's own control flow.
func ObserveFluxDuration(fluxKey string, d time.Duration) {
	defer func() { _ = recover() }()
	fluxDuration.WithLabelValues(fluxKey).Observe(d.Seconds())
}

// ObserveNodeDuration records one node's execution time and outcome.
func ObserveNodeDuration(nodeType string, d time.Duration, success bool) {
	defer func() { _ = recover() }()
	outcome := outcomeLabel(success)
	nodeDuration.WithLabelValues(nodeType, outcome).Observe(d.Seconds())
	nodeExecutions.WithLabelValues(nodeType, outcome).Inc()
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
