// Package metrics provides the centralized Prometheus registry reference for
// the DigiKey client. All metrics are defined in their owning packages
// (client, auth, cache, ratelimit, store, pagination, mapper) to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the DigiKey client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - digikey_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - digikey_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//
// Retry Metrics (pkg/client):
//   - digikey_retries_total{endpoint} (Counter): Retry attempts by endpoint
//   - digikey_retry_backoff_seconds{endpoint} (Histogram): Backoff duration by endpoint
//   - digikey_retry_exhausted_total{endpoint} (Counter): Requests that exhausted max retries
//
// Auth Metrics (pkg/auth):
//   - digikey_token_refreshes_total{outcome} (Counter): Token refreshes by outcome
//
// Cache Metrics (pkg/cache):
//   - digikey_cache_hits_total (Counter): Detail cache hits
//   - digikey_cache_misses_total (Counter): Detail cache misses
//   - digikey_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - digikey_rate_limit_remaining (Gauge): Requests remaining in the vendor window
//   - digikey_rate_limit_blocks_total (Counter): Requests paused until window reset
//   - digikey_rate_limit_slowdowns_total (Counter): Requests delayed due to low budget
//
// Store Metrics (pkg/store):
//   - digikey_store_appends_total{outcome} (Counter): Batch appends by outcome
//   - digikey_store_corruption_recovered_total (Counter): Corrupt collections replaced
//
// Pagination Metrics (pkg/pagination):
//   - digikey_pages_fetched_total (Counter): Search pages fetched
//   - digikey_pagination_keywords_total{status} (Counter): Keywords by terminal status
//
// Mapping Metrics (pkg/mapper):
//   - digikey_mapping_skips_total (Counter): Records skipped because mapping failed
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(digikey_cache_hits_total[5m])) /
//   (sum(rate(digikey_cache_hits_total[5m])) + sum(rate(digikey_cache_misses_total[5m])))
//
//   # Retry Exhaustion Rate
//   rate(digikey_retry_exhausted_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(digikey_request_duration_seconds_bucket[5m]))
//
//   # Remaining Rate Limit Budget
//   digikey_rate_limit_remaining < 10
