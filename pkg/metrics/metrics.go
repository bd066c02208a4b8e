package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entrelaunch_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// PermissionChecks counts permission evaluations and their outcome (allowed|denied|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entrelaunch_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"permission", "result"},
	)

	// TaskRuns counts background task executions by task name and outcome.
	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entrelaunch_task_runs_total",
			Help: "Total number of background task executions",
		},
		[]string{"task", "result"},
	)

	// GatewayCalls counts outbound payment gateway requests by operation and outcome.
	GatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entrelaunch_gateway_calls_total",
			Help: "Total number of payment gateway requests",
		},
		[]string{"operation", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entrelaunch_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
