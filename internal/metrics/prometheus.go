package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnapshotsTotal snapshots received, by outcome (ok, partial, rejected)
	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sems_snapshots_total",
			Help: "Total number of telemetry snapshots received",
		},
		[]string{"outcome"},
	)

	// FieldIssuesTotal missing or malformed fields, by key
	FieldIssuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sems_field_issues_total",
			Help: "Total number of missing or malformed snapshot fields",
		},
		[]string{"field"},
	)

	// ComputeLatency time to build one derived view
	ComputeLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sems_compute_latency_seconds",
			Help:    "Time spent recomputing the derived view",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// TransportAvailable 1 while the store connection is up
	TransportAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sems_transport_available",
			Help: "Whether the telemetry store is reachable (1) or not (0)",
		},
	)

	// PowerWatts instantaneous draw
	PowerWatts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sems_power_watts",
			Help: "Instantaneous power draw in watts",
		},
	)

	// MonthlyCostRM tiered cost of the cumulative reading
	MonthlyCostRM = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sems_monthly_cost_rm",
			Help: "Estimated monthly cost under the tiered tariff",
		},
	)

	// IntentsTotal control writes, by field and result
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sems_control_intents_total",
			Help: "Total number of control writes issued",
		},
		[]string{"field", "result"},
	)

	// RequestsTotal gateway requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sems_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration gateway latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sems_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// SinkErrors failures of history/cache sinks
	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sems_sink_errors_total",
			Help: "Total number of failed sink writes",
		},
		[]string{"sink"},
	)

	// RedisOperations operations against the cache
	RedisOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sems_redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)
)
