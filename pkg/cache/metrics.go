package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache metrics. The layer label is always "redis"; operation is one of
// get, set, delete or purge.
var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "github_cache_hits_total",
		Help: "GitHub responses found in the cache, fresh or stale",
	}, []string{"layer"})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "github_cache_misses_total",
		Help: "Cache lookups that found no entry",
	})

	CacheSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "github_cache_size_bytes",
		Help: "Bytes written to the GitHub response cache",
	}, []string{"layer"})

	// ConditionalRequestsSent counts requests carrying If-None-Match or
	// If-Modified-Since
	ConditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "github_conditional_requests_total",
		Help: "Conditional requests sent to GitHub",
	})

	// NotModifiedResponses counts 304 answers, which cost no rate limit
	NotModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "github_304_responses_total",
		Help: "GitHub 304 Not Modified responses served from the cache",
	})

	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "github_cache_errors_total",
		Help: "Failed cache operations",
	}, []string{"operation"})
)
