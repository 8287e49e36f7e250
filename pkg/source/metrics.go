package source

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for sources and fetch middleware.
var (
	feedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_feed_requests_total",
		Help: "Total feed page requests by endpoint and status",
	}, []string{"endpoint", "status"})

	feedRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zensuite_feed_request_duration_seconds",
		Help:    "Feed page request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	feedErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_feed_errors_total",
		Help: "Total feed errors by class",
	}, []string{"class"})

	fetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_fetch_retries_total",
		Help: "Total number of fetch retry attempts by error class",
	}, []string{"error_class"})

	fetchRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zensuite_fetch_retry_backoff_seconds",
		Help:    "Backoff duration for fetch retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	fetchRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_fetch_retry_exhausted_total",
		Help: "Total number of times fetch retry attempts were exhausted by error class",
	}, []string{"error_class"})

	breakerRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_breaker_rejections_total",
		Help: "Total number of fetches rejected by an open circuit breaker",
	}, []string{"breaker"})

	pageCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_page_cache_hits_total",
		Help: "Total number of page cache hits",
	}, []string{"feed"})

	pageCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_page_cache_misses_total",
		Help: "Total number of page cache misses",
	}, []string{"feed"})

	pageCacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_page_cache_errors_total",
		Help: "Total number of page cache operation errors",
	}, []string{"operation"})

	feedBudgetRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zensuite_feed_budget_remaining",
		Help: "Errors remaining in the feed's current rate limit window",
	}, []string{"feed"})

	feedBudgetBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_feed_budget_blocks_total",
		Help: "Total number of fetches blocked by a critical error budget",
	}, []string{"feed"})

	feedBudgetThrottlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_feed_budget_throttles_total",
		Help: "Total number of fetches throttled by a low error budget",
	}, []string{"feed"})
)
