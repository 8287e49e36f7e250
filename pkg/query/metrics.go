package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for query controllers.
var (
	queryFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_query_fetches_total",
		Help: "Total number of page fetch attempts by outcome",
	}, []string{"query", "outcome"})

	queryFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zensuite_query_fetch_duration_seconds",
		Help:    "Duration of page fetches including application of the result",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	queryRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_query_refreshes_total",
		Help: "Total number of refresh operations",
	}, []string{"query"})

	queryPages = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zensuite_query_pages",
		Help: "Number of pages currently held by the controller",
	}, []string{"query"})
)

// Fetch outcomes recorded in zensuite_query_fetches_total.
const (
	outcomeApplied        = "applied"
	outcomeDiscardedStale = "discarded_stale"
	outcomeError          = "error"
	outcomeErrorStale     = "error_stale"
	outcomeNoopPending    = "noop_pending"
	outcomeNoopExhausted  = "noop_exhausted"
)
