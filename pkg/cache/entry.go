package cache

import (
	"net/http"
	"time"
)

// storedHeaders are replayed when an entry is served after a 304. Rate
// limit and request id headers describe a single request and always come
// from the revalidating response instead.
var storedHeaders = []string{
	"Cache-Control",
	"Content-Type",
	"ETag",
	"Last-Modified",
	"Link",
	"Vary",
	"X-GitHub-Media-Type",
}

// CacheEntry is a GitHub response body with the validators needed to
// revalidate it.
type CacheEntry struct {
	Data         []byte      `json:"data"`
	ETag         string      `json:"etag"`
	Expires      time.Time   `json:"expires"`
	LastModified time.Time   `json:"last_modified"`
	StatusCode   int         `json:"status_code"`
	Headers      http.Header `json:"headers"`

	// CachedAt is when the body was downloaded
	CachedAt time.Time `json:"cached_at"`

	// RevalidatedAt is when a 304 last confirmed the body
	RevalidatedAt time.Time `json:"revalidated_at,omitempty"`

	Revalidations int `json:"revalidations"`
}

// IsExpired reports whether the freshness window has passed. Expired
// entries are still revalidated rather than dropped.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until the entry stops being fresh, or 0.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age is the time since the body was downloaded.
func (e *CacheEntry) Age() time.Duration {
	return time.Since(e.CachedAt)
}

// revalidate records a 304 that moved the freshness window to expires.
func (e *CacheEntry) revalidate(expires time.Time) {
	e.Expires = expires
	e.RevalidatedAt = time.Now()
	e.Revalidations++
}

func storableHeaders(h http.Header) http.Header {
	out := make(http.Header, len(storedHeaders))
	for _, name := range storedHeaders {
		if values := h.Values(name); len(values) > 0 {
			out[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
		}
	}
	return out
}
