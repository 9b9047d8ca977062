// Package metrics defines the Prometheus collectors shared by the generation core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// GenerationCallsTotal counts backend generation calls by vendor and outcome
	GenerationCallsTotal *prometheus.CounterVec

	// GenerationLatency observes backend call latency
	GenerationLatency *prometheus.HistogramVec

	// ProviderFallbacksTotal counts selections that resolved to the default client
	ProviderFallbacksTotal *prometheus.CounterVec

	// RetriesTotal counts blind transport retries by operation label
	RetriesTotal *prometheus.CounterVec

	// EscalationsTotal counts escalated (stronger prompt) retries
	EscalationsTotal *prometheus.CounterVec

	// ConsistencyWaitsTotal counts consistency guard outcomes
	ConsistencyWaitsTotal *prometheus.CounterVec

	// PipelineRunsTotal counts generation pipeline runs
	PipelineRunsTotal *prometheus.CounterVec

	// AutonomousActionsTotal counts autonomous action outcomes
	AutonomousActionsTotal *prometheus.CounterVec

	// BackgroundTaskFailuresTotal counts failed or panicked background tasks
	BackgroundTaskFailuresTotal *prometheus.CounterVec
)

func init() {
	GenerationCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishsim",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total generation backend calls",
		},
		[]string{"vendor", "status"},
	)

	GenerationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phishsim",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Generation backend call latency",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"vendor"},
	)

	ProviderFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishsim",
			Subsystem: "llm",
			Name:      "provider_fallbacks_total",
			Help:      "Provider selections that fell back to the default client",
		},
		[]string{"reason"},
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishsim",
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Transport retries by operation",
		},
		[]string{"operation"},
	)

	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishsim",
			Subsystem: "resilience",
			Name:      "escalations_total",
			Help:      "Escalated retries after validation failures",
		},
		[]string{"operation", "outcome"},
	)

	ConsistencyWaitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishsim",
			Subsystem: "store",
			Name:      "consistency_waits_total",
			Help:      "Consistency guard outcomes",
		},
		[]string{"outcome"},
	)

	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishsim",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Generation pipeline runs",
		},
		[]string{"kind", "status"},
	)

	AutonomousActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishsim",
			Subsystem: "autonomous",
			Name:      "actions_total",
			Help:      "Autonomous actions by outcome",
		},
		[]string{"action", "status"},
	)

	BackgroundTaskFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishsim",
			Subsystem: "tasks",
			Name:      "failures_total",
			Help:      "Background task failures",
		},
		[]string{"panicked"},
	)

	prometheus.MustRegister(
		GenerationCallsTotal,
		GenerationLatency,
		ProviderFallbacksTotal,
		RetriesTotal,
		EscalationsTotal,
		ConsistencyWaitsTotal,
		PipelineRunsTotal,
		AutonomousActionsTotal,
		BackgroundTaskFailuresTotal,
	)
}
