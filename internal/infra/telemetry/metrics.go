package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks dispatched gateway requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_gateway_requests_total",
			Help: "Total number of gateway requests dispatched",
		},
		[]string{"client", "operation", "method"},
	)

	// RequestErrorsTotal tracks failed gateway requests by reason
	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_gateway_request_errors_total",
			Help: "Total number of failed gateway requests",
		},
		[]string{"client", "operation", "reason"},
	)

	// RequestDuration tracks gateway request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_gateway_request_duration_seconds",
			Help:    "Gateway request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"client", "operation"},
	)

	// RetriesTotal tracks retry attempts on transient failures
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_gateway_retries_total",
			Help: "Total number of retry attempts",
		},
		[]string{"operation"},
	)

	// HealthChecksTotal tracks health probe results
	HealthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_health_checks_total",
			Help: "Total number of health probes by result",
		},
		[]string{"result"},
	)

	// GatewayUp reflects the tracker's current availability flag
	GatewayUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "console_gateway_up",
			Help: "Whether the gateway is currently considered healthy",
		},
	)
)
