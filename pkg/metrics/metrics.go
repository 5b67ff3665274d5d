// Package metrics exposes the Prometheus registry shared by the GitHub client.
// All metrics are defined in their respective packages (client, cache,
// pagination, ratelimit) to keep those packages free of cross imports.
//
// This package provides the scrape handler and the reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the GitHub client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back everything registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - github_rate_limit_remaining{resource} (Gauge): Requests remaining in the current window
//   - github_rate_limit_blocks_total{resource} (Counter): Requests held back by the rate limit buffer
//
// Cache Metrics (pkg/cache):
//   - github_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - github_cache_misses_total (Counter): Cache misses
//   - github_cache_size_bytes{layer="redis"} (Gauge): Bytes written to the cache
//   - github_304_responses_total (Counter): 304 Not Modified responses
//   - github_conditional_requests_total (Counter): Conditional requests sent with If-None-Match
//   - github_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - github_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - github_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - github_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - github_pagination_halts_total{reason} (Counter): Paginated calls that did not follow the next link
//
// Pagination Metrics (pkg/pagination):
//   - github_pagination_pages_fetched_total (Counter): Pages yielded by enumerators
//   - github_pagination_stops_total{reason} (Counter): Enumerator stops (max_pages, total_pages, exhausted)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(github_cache_hits_total[5m])) /
//   (sum(rate(github_cache_hits_total[5m])) + sum(rate(github_cache_misses_total[5m])))
//
//   # Core Budget Running Low
//   github_rate_limit_remaining{resource="core"} < 100
//
//   # Request Error Rate
//   rate(github_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(github_request_duration_seconds_bucket[5m]))
//
//   # Pages per Paginated Call
//   rate(github_pagination_pages_fetched_total[5m]) / rate(github_pagination_stops_total[5m])
