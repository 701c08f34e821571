package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_started_total",
			Help: "Total number of sessions started",
		},
		[]string{"outcome"},
	)

	SessionsStopped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_stopped_total",
			Help: "Total number of sessions stopped",
		},
		[]string{"outcome"},
	)

	SessionsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_cancelled_total",
			Help: "Total number of sessions cancelled",
		},
		[]string{"outcome"},
	)

	SessionsLong = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_long_total",
			Help: "Completed sessions whose duration exceeded the long-session threshold",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of currently active sessions in the index",
		},
	)

	SessionsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_recovered_total",
			Help: "Active sessions rebuilt into the index during boot recovery",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "api_request_duration_seconds",
			Help: "Duration of API request handling in seconds",
		},
		[]string{"endpoint"},
	)

	RequestsRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_requests_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	AggregatorCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_cache_hits_total",
			Help: "Aggregator cache lookups by result",
		},
		[]string{"result"},
	)
)
