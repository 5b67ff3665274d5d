// Package cache stores GitHub responses in Redis so repeated requests can be
// revalidated with If-None-Match instead of downloading the body again.
//
// GitHub does not count a 304 Not Modified response against the rate limit,
// so every cached entry is kept past its freshness window and revalidated on
// the next request. An entry is only dropped when Redis expires it
// (freshness plus StaleRetention) or when it is deleted explicitly.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Path:  "/repos/octocat/hello-world/issues",
//		Query: url.Values{"state": []string{"open"}, "per_page": []string{"100"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from GitHub
//	}
//
// # Conditional Requests
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//	// on 304:
//	entry, _ = manager.Revalidated(ctx, key, cache.Refreshed(notModified.Header))
//	resp := cache.EntryToResponse(entry, notModified.Header)
//
// Only representation headers (Content-Type, ETag, Link...) are stored;
// rate limit headers on a served entry come from the 304.
//
// # Invalidation
//
// Purge drops every entry for a path, whatever query or credential it was
// fetched with:
//
//	n, err := manager.Purge(ctx, "/repos/octocat/hello-world/issues")
//
// # Metrics
//
//   - github_cache_hits_total{layer="redis"}
//   - github_cache_misses_total
//   - github_cache_size_bytes{layer="redis"}
//   - github_conditional_requests_total
//   - github_304_responses_total
//   - github_cache_errors_total{operation}
package cache
