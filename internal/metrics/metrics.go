// Package metrics defines the Prometheus collectors for the
// optimization service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the service collectors. Create one per registry; the
// server and the worker pool share the same instance.
type Metrics struct {
	RunsStarted   prometheus.Counter
	RunsCompleted prometheus.Counter
	RunsFailed    prometheus.Counter
	RunsCancelled prometheus.Counter
	Evaluations   prometheus.Counter
	RunDuration   prometheus.Histogram
	JobsInFlight  prometheus.Gauge
}

// New registers the service collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ttserve_runs_started_total",
			Help: "Optimization runs started.",
		}),
		RunsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ttserve_runs_completed_total",
			Help: "Optimization runs that finished successfully.",
		}),
		RunsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ttserve_runs_failed_total",
			Help: "Optimization runs that ended with an error.",
		}),
		RunsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "ttserve_runs_cancelled_total",
			Help: "Optimization runs cancelled before completion.",
		}),
		Evaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "ttserve_objective_evaluations_total",
			Help: "Objective function evaluations across all runs.",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ttserve_run_duration_seconds",
			Help:    "Wall-clock duration of optimization runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		JobsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ttserve_jobs_in_flight",
			Help: "Optimization runs currently executing.",
		}),
	}
}
