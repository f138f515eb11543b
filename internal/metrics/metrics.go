// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values shared by several collectors.
const (
	DecisionAllowed = "allowed"
	DecisionDenied  = "denied"
	DecisionBypass  = "bypass"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	// AdmissionDecisions counts rate-limit gate outcomes per route class.
	AdmissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teamplatform",
			Subsystem: "admission",
			Name:      "decisions_total",
			Help:      "Rate-limit admission decisions by route class",
		},
		[]string{"class", "decision"},
	)

	// LimiterErrors counts limiter faults that were failed open.
	LimiterErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "teamplatform",
			Subsystem: "admission",
			Name:      "limiter_errors_total",
			Help:      "Rate limiter internal errors (request allowed)",
		},
	)

	// LimiterEntries tracks the size of the rate-limit table.
	LimiterEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "teamplatform",
			Subsystem: "admission",
			Name:      "limiter_entries",
			Help:      "Number of live rate-limit windows",
		},
	)

	// APIKeyValidations counts API key validation outcomes.
	APIKeyValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teamplatform",
			Subsystem: "apikey",
			Name:      "validations_total",
			Help:      "API key validations by outcome",
		},
		[]string{"outcome"},
	)

	// AuditWrites counts audit persistence attempts.
	AuditWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teamplatform",
			Subsystem: "audit",
			Name:      "writes_total",
			Help:      "Audit record writes by result",
		},
		[]string{"result"},
	)

	// AsyncTasksDropped counts background tasks rejected by a saturated or
	// closed executor.
	AsyncTasksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teamplatform",
			Subsystem: "async",
			Name:      "tasks_dropped_total",
			Help:      "Background tasks dropped without running",
		},
		[]string{"task"},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
