// Package metrics exposes the backend's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by method, path, and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniis3_http_requests_total",
		Help: "HTTP requests handled.",
	}, []string{"method", "path", "status"})

	// HTTPDuration tracks request latency by path.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "miniis3_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	// SettlementRuns counts settlement invocations by outcome.
	SettlementRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniis3_settlement_runs_total",
		Help: "Settlement workflow invocations by outcome.",
	}, []string{"outcome"})

	// NotificationsSent counts notification deliveries by state.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniis3_notifications_total",
		Help: "Notification delivery attempts by resulting state.",
	}, []string{"state"})
)
