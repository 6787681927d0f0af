package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveJobs tracks currently running migration jobs
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ai_modernizer_active_jobs",
			Help: "Number of currently active migration jobs",
		},
	)

	// JobStatus tracks terminal job outcomes
	JobStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_modernizer_jobs_total",
			Help: "Total number of migration jobs by terminal status",
		},
		[]string{"status", "project_kind"},
	)

	// AgentDuration tracks per-agent call latency
	AgentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_modernizer_agent_duration_seconds",
			Help:    "Duration of agent invocations",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 15),
		},
		[]string{"agent", "outcome"},
	)

	// ModelCalls tracks model gateway call counts
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_modernizer_model_calls_total",
			Help: "Total number of model completion calls",
		},
		[]string{"caller", "provider", "status"},
	)

	// ModelCost tracks accumulated model spend
	ModelCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_modernizer_model_cost_usd_total",
			Help: "Total estimated model spend in USD",
		},
		[]string{"caller"},
	)

	// SandboxOperations tracks Sandbox Driver stage counts
	SandboxOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_modernizer_sandbox_operations_total",
			Help: "Total number of sandbox validation stage executions",
		},
		[]string{"stage", "status"},
	)

	// SandboxOperationDuration tracks Sandbox Driver stage latency
	SandboxOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_modernizer_sandbox_operation_duration_seconds",
			Help:    "Duration of sandbox validation stages",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		},
		[]string{"stage"},
	)

	// RegistryProbeRequests tracks registry probe outcomes
	RegistryProbeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_modernizer_registry_probe_requests_total",
			Help: "Total number of package registry lookups",
		},
		[]string{"project_kind", "result"},
	)

	// RetryAttempts tracks sandbox Docker operation retry outcomes
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_modernizer_retry_attempts_total",
			Help: "Total number of sandbox Docker operation retry outcomes",
		},
		[]string{"outcome"},
	)

	// ToolCalls tracks tool host invocation counts
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_modernizer_tool_calls_total",
			Help: "Total number of tool host invocations",
		},
		[]string{"tool", "transport", "status"},
	)
)

// Metrics provides access to all application metrics.
type Metrics struct{}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordJob records a terminal job outcome.
func (m *Metrics) RecordJob(status, projectKind string) {
	JobStatus.WithLabelValues(status, projectKind).Inc()
}

// SetActiveJobs sets the number of active jobs.
func (m *Metrics) SetActiveJobs(count float64) {
	ActiveJobs.Set(count)
}

// RecordModelCall records a model gateway call and its cost.
func (m *Metrics) RecordModelCall(caller, provider, status string, cost float64) {
	ModelCalls.WithLabelValues(caller, provider, status).Inc()
	if cost > 0 {
		ModelCost.WithLabelValues(caller).Add(cost)
	}
}
