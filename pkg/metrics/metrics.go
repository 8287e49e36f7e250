// Package metrics provides the centralized Prometheus metrics registry for
// zensuite. All metrics are defined in their respective packages (query,
// mutation, source, bus) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by zensuite.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Query Metrics (pkg/query):
//   - zensuite_query_fetches_total{query, outcome} (Counter): Fetch attempts by
//     controller and outcome (applied, discarded_stale, error, error_stale,
//     noop_pending, noop_exhausted)
//   - zensuite_query_fetch_duration_seconds{query} (Histogram): Page fetch duration
//   - zensuite_query_refreshes_total{query} (Counter): Refresh cycles per controller
//   - zensuite_query_pages{query} (Gauge): Pages currently held by a controller
//
// Mutation Metrics (pkg/mutation):
//   - zensuite_mutation_transitions_total{cell, status} (Counter): State transitions
//     by cell and resulting status
//   - zensuite_mutation_rejected_runs_total{cell} (Counter): Runs rejected while pending
//   - zensuite_mutation_superseded_runs_total{cell} (Counter): Runs whose result was
//     dropped after a reset
//
// Feed Metrics (pkg/source):
//   - zensuite_feed_requests_total{endpoint, status} (Counter): Feed page requests
//     by endpoint and HTTP status
//   - zensuite_feed_request_duration_seconds{endpoint} (Histogram): Page request duration
//   - zensuite_feed_errors_total{class} (Counter): Errors by class (client, server,
//     rate_limit, network, decode)
//
// Retry and Breaker Metrics (pkg/source):
//   - zensuite_fetch_retries_total{error_class} (Counter): Retry attempts by error class
//   - zensuite_fetch_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - zensuite_fetch_retry_exhausted_total{error_class} (Counter): Fetches that exhausted
//     max retries
//   - zensuite_breaker_rejections_total{breaker} (Counter): Fetches rejected by an open
//     circuit breaker
//
// Page Cache Metrics (pkg/source):
//   - zensuite_page_cache_hits_total{feed} (Counter): Page cache hits
//   - zensuite_page_cache_misses_total{feed} (Counter): Page cache misses
//   - zensuite_page_cache_errors_total{operation} (Counter): Cache operation errors
//
// Error Budget Metrics (pkg/source):
//   - zensuite_feed_budget_remaining{feed} (Gauge): Errors remaining in the feed's
//     current rate limit window
//   - zensuite_feed_budget_blocks_total{feed} (Counter): Fetches blocked by a
//     critical budget
//   - zensuite_feed_budget_throttles_total{feed} (Counter): Fetches throttled by a
//     low budget
//
// Bus Metrics (pkg/bus):
//   - zensuite_bus_publishes_total{topic} (Counter): Events published per topic
//   - zensuite_bus_subscribers{topic} (Gauge): Current subscribers per topic
//
// Example Prometheus Queries:
//
//   # Page Cache Hit Rate
//   sum(rate(zensuite_page_cache_hits_total[5m])) /
//   (sum(rate(zensuite_page_cache_hits_total[5m])) + sum(rate(zensuite_page_cache_misses_total[5m])))
//
//   # Stale Discard Rate (refresh races)
//   rate(zensuite_query_fetches_total{outcome="discarded_stale"}[5m])
//
//   # Fetch Error Rate
//   rate(zensuite_feed_errors_total[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(zensuite_query_fetch_duration_seconds_bucket[5m]))
//
//   # Controllers Holding Pages
//   zensuite_query_pages > 0
