package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks requests that entered the routing tree
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcroute_requests_total",
			Help: "Total number of routed requests",
		},
		[]string{"operation", "result"},
	)

	// RequestLatency tracks end-to-end routing latency
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcroute_request_latency_seconds",
			Help:    "Routing latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// InFlight tracks requests currently admitted by the proxy
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcroute_requests_in_flight",
			Help: "Number of requests currently being routed",
		},
	)

	// FailoverAttempts tracks sub-requests sent to failover targets
	FailoverAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcroute_failover_attempts_total",
			Help: "Total number of failover attempts",
		},
		[]string{"route", "failure_class"},
	)

	// FailoverRecovered tracks failovers that ended on a non-retriable reply
	FailoverRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcroute_failover_recovered_total",
			Help: "Total number of requests answered by a failover target",
		},
		[]string{"route"},
	)

	// FailoverExhausted tracks failovers that ran out of targets
	FailoverExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcroute_failover_exhausted_total",
			Help: "Total number of requests that exhausted every failover target",
		},
		[]string{"route"},
	)

	// DestinationRequests tracks requests per backend pool and result
	DestinationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcroute_destination_requests_total",
			Help: "Total number of requests sent to a destination",
		},
		[]string{"pool", "result"},
	)

	// DestinationLatency tracks backend round trip latency
	DestinationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcroute_destination_latency_seconds",
			Help:    "Destination latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pool"},
	)

	// DestinationTko is 1 while a destination is marked TKO
	DestinationTko = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mcroute_destination_tko",
			Help: "Whether a destination is currently marked TKO",
		},
		[]string{"pool"},
	)

	// SinkErrorsTotal tracks log records a sink failed to deliver
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcroute_sink_errors_total",
			Help: "Total number of log records a sink failed to deliver",
		},
		[]string{"sink"},
	)
)
