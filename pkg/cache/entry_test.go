package cache

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheEntry_Freshness(t *testing.T) {
	tests := []struct {
		name        string
		expires     time.Time
		wantExpired bool
		wantTTL     time.Duration
	}{
		{name: "fresh for an hour", expires: time.Now().Add(time.Hour), wantTTL: time.Hour},
		{name: "fresh for a minute", expires: time.Now().Add(time.Minute), wantTTL: time.Minute},
		{name: "stale by a second", expires: time.Now().Add(-time.Second), wantExpired: true},
		{name: "stale by a day", expires: time.Now().Add(-24 * time.Hour), wantExpired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Expires: tt.expires}

			assert.Equal(t, tt.wantExpired, entry.IsExpired())
			assert.InDelta(t, tt.wantTTL.Seconds(), entry.TTL().Seconds(), 1)
			assert.GreaterOrEqual(t, entry.TTL(), time.Duration(0))
		})
	}
}

func TestCacheEntry_Age(t *testing.T) {
	entry := &CacheEntry{CachedAt: time.Now().Add(-90 * time.Second)}
	assert.InDelta(t, 90, entry.Age().Seconds(), 1)
}

func TestCacheEntry_Revalidate(t *testing.T) {
	cachedAt := time.Now().Add(-10 * time.Minute)
	entry := &CacheEntry{
		CachedAt: cachedAt,
		Expires:  time.Now().Add(-5 * time.Minute),
	}
	assert.True(t, entry.IsExpired())

	next := time.Now().Add(time.Minute)
	entry.revalidate(next)
	entry.revalidate(next)

	assert.False(t, entry.IsExpired())
	assert.Equal(t, next, entry.Expires)
	assert.Equal(t, 2, entry.Revalidations)
	assert.WithinDuration(t, time.Now(), entry.RevalidatedAt, time.Second)
	assert.Equal(t, cachedAt, entry.CachedAt, "revalidation keeps the download time")
}

func TestStorableHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("ETag", `W/"abc"`)
	h.Add("Link", `<https://api.github.com/x?page=2>; rel="next"`)
	h.Add("Link", `<https://api.github.com/x?page=9>; rel="last"`)
	h.Set("X-RateLimit-Remaining", "4999")
	h.Set("X-RateLimit-Resource", "core")
	h.Set("X-GitHub-Request-Id", "D1A2:3B4C")
	h.Set("Date", "Mon, 02 Jan 2006 15:04:05 GMT")

	got := storableHeaders(h)

	assert.Equal(t, "application/json; charset=utf-8", got.Get("Content-Type"))
	assert.Equal(t, `W/"abc"`, got.Get("ETag"))
	assert.Len(t, got.Values("Link"), 2)
	assert.Empty(t, got.Get("X-RateLimit-Remaining"))
	assert.Empty(t, got.Get("X-RateLimit-Resource"))
	assert.Empty(t, got.Get("X-GitHub-Request-Id"))
	assert.Empty(t, got.Get("Date"))

	// The stored copy does not alias the response
	h.Set("ETag", `W/"changed"`)
	assert.Equal(t, `W/"abc"`, got.Get("ETag"))
}
