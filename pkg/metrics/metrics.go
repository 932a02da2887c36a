// Package metrics exposes the Prometheus registry shared by the feed packages.
// All metrics are defined in their respective packages (cache, pagination,
// wordpress, ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides the scrape handler and the catalogue of all metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the feed packages.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving every registered metric.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - feed_cache_hits_total{cache} (Counter): Hits by cache (response, asset)
//   - feed_cache_misses_total{cache} (Counter): Misses by cache, expired entries included
//   - feed_cache_evictions_total{cache, reason} (Counter): Removals by reason (capacity, expired, sweep)
//   - feed_cache_entries{cache} (Gauge): Current entry count
//   - feed_cache_size_bytes{cache} (Gauge): Current payload bytes
//
// Pagination Metrics (pkg/pagination):
//   - feed_page_loads_total{kind, source, result} (Counter): Page loads by kind (first, refresh, switch, more)
//   - feed_page_load_duration_seconds{kind} (Histogram): Page load duration
//   - feed_aux_resolutions_total{result} (Counter): Auxiliary resolutions (resolved, failed, not_found, cancelled)
//   - feed_superseded_results_total (Counter): Results discarded after a filter switch
//
// Request Metrics (pkg/wordpress):
//   - feed_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - feed_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - feed_request_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Retry Metrics (pkg/wordpress):
//   - feed_retries_total{error_class} (Counter): Retry attempts by error class
//   - feed_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - feed_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - feed_rate_limit_waits_total (Counter): Requests delayed by client-side pacing
//   - feed_rate_limit_pauses_total (Counter): Server-requested pauses (Retry-After)
//
// Example Prometheus Queries:
//
//   # Response Cache Hit Rate
//   sum(rate(feed_cache_hits_total{cache="response"}[5m])) /
//   (sum(rate(feed_cache_hits_total{cache="response"}[5m])) + sum(rate(feed_cache_misses_total{cache="response"}[5m])))
//
//   # Thumbnail Resolution Failure Ratio
//   sum(rate(feed_aux_resolutions_total{result!="resolved"}[5m])) / sum(rate(feed_aux_resolutions_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(feed_request_duration_seconds_bucket[5m]))
