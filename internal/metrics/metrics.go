package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Request volume, split by action and outcome (ok/error).
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "buttonstats_requests_total",
		Help: "Total number of API requests received.",
	}, []string{"action", "outcome"})

	// End-to-end handler latency.
	RequestDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "buttonstats_request_duration_seconds",
		Help:    "End-to-end handler duration for API requests.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	// Cache effectiveness.
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buttonstats_cache_hits_total",
		Help: "API responses served from the Redis cache.",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buttonstats_cache_misses_total",
		Help: "API responses that had to query the store.",
	})

	// Live feed connections currently open.
	FeedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "buttonstats_feed_clients",
		Help: "Current number of connected live feed clients.",
	})
)

func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		RequestsTotal,
		RequestDurationSeconds,
		CacheHitsTotal,
		CacheMissesTotal,
		FeedClients,
	)
}
