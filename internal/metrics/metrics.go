// Package metrics holds the Prometheus collectors shared by the client core and the dev API
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proconnect"

// Outcome labels for OptimisticOperations
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeRejected   = "rejected"
	OutcomeDiscarded  = "discarded"
)

var (
	// OptimisticOperations counts optimistic operations by name and outcome.
	// Labels: op, outcome (committed, rolled_back, rejected, discarded)
	OptimisticOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "optimistic_operations_total",
		Help:      "Optimistic operations by outcome",
	}, []string{"op", "outcome"})

	// ClientRequestDuration measures remote API calls made by the client.
	// Labels: method, route, status (HTTP status code or "error")
	ClientRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Remote API call latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method", "route", "status"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests served",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests served",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"method", "route"})

	// NotificationsCreated counts notifications the dev backend emitted, after dedup.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "notifications_created_total",
		Help:      "Notifications created by the backend",
	}, []string{"kind"})
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
