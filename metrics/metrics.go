// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hongbao_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hongbao_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hongbao_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	DomainErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hongbao_domain_errors_total",
			Help: "Total number of domain errors by kind and code",
		},
		[]string{"kind", "code"},
	)

	RecordsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hongbao_records_created_total",
			Help: "Total number of red packets recorded",
		},
	)

	RecordsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hongbao_records_deleted_total",
			Help: "Total number of red packets deleted",
		},
	)

	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hongbao_auth_attempts_total",
			Help: "Total number of register and login attempts by outcome",
		},
		[]string{"action", "outcome"},
	)

	RateLimitBlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hongbao_rate_limit_blocked_total",
			Help: "Total number of requests blocked by rate limiter",
		},
	)
)
