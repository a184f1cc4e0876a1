// Package metrics defines the Prometheus collectors for the platform.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Execution metrics
var (
	// ExecutionsTotal tracks total executions by status
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpad_executions_total",
			Help: "Total number of workflow executions by status",
		},
		[]string{"org_id", "status"},
	)

	// ExecutionsRejectedTotal tracks admission rejections by reason
	ExecutionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpad_executions_rejected_total",
			Help: "Total number of execution requests rejected at admission",
		},
		[]string{"org_id", "reason"},
	)

	// ExecutionDuration tracks execution duration
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netpad_execution_duration_seconds",
			Help:    "Workflow execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"org_id"},
	)

	// ExecutionsPending tracks executions currently waiting in the queue
	ExecutionsPending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netpad_executions_pending",
			Help: "Number of executions currently waiting in the queue",
		},
		[]string{"org_id"},
	)

	// NodeOutcomesTotal tracks node outcomes by type
	NodeOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpad_node_outcomes_total",
			Help: "Total number of node outcomes by result",
		},
		[]string{"org_id", "outcome"},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal tracks HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpad_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netpad_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Schedule trigger metrics
var (
	// ScheduledTriggersTotal tracks schedule trigger firings
	ScheduledTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpad_scheduled_triggers_total",
			Help: "Total number of schedule trigger firings by result",
		},
		[]string{"org_id", "result"},
	)
)
