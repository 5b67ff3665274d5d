package cache

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis connects to a local Redis on DB 15 and skips the test when
// none is running. tests/integration covers the same paths against a
// container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available for testing: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func issuesKey(page string) CacheKey {
	return CacheKey{
		Path:  "/repos/octocat/hello-world/issues",
		Query: url.Values{"state": {"open"}, "page": {page}},
	}
}

func testEntry(etag string, expires time.Time) *CacheEntry {
	return &CacheEntry{
		Data:       []byte(`[{"number":1}]`),
		ETag:       etag,
		Expires:    expires,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {"application/json"}},
		CachedAt:   time.Now(),
	}
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client)
	assert.Same(t, client, manager.redis)
	assert.Equal(t, StaleRetention, manager.retention)

	assert.Equal(t, time.Minute, manager.WithRetention(time.Minute).retention)
	assert.Equal(t, time.Minute, manager.WithRetention(-time.Second).retention, "negative retention is ignored")

	assert.Panics(t, func() { NewManager(nil) })
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := issuesKey("1")

	entry := testEntry(`"abc123"`, time.Now().Add(time.Minute))
	require.NoError(t, manager.Set(ctx, key, entry))

	got, err := manager.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entry.Data, got.Data)
	assert.Equal(t, entry.ETag, got.ETag)
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, "application/json", got.Headers.Get("Content-Type"))
	assert.False(t, got.IsExpired())
}

func TestManager_GetMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), issuesKey("404"))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_GetInvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := issuesKey("1")

	require.NoError(t, client.Set(ctx, key.String(), "not json", time.Minute).Err())

	_, err := manager.Get(ctx, key)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestManager_StaleEntriesAreRetained(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client).WithRetention(time.Hour)
	ctx := context.Background()
	key := issuesKey("1")

	require.NoError(t, manager.Set(ctx, key, testEntry(`"old"`, time.Now().Add(-time.Minute))))

	got, err := manager.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, got.IsExpired())

	ttl, err := client.TTL(ctx, key.String()).Result()
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)
}

func TestManager_Revalidated(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := issuesKey("2")

	stored := testEntry(`"abc"`, time.Now().Add(-time.Minute))
	require.NoError(t, manager.Set(ctx, key, stored))

	expires := time.Now().Add(2 * time.Minute)
	refreshed, err := manager.Revalidated(ctx, key, expires)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.Revalidations)
	assert.False(t, refreshed.IsExpired())
	assert.Equal(t, stored.Data, refreshed.Data)

	got, err := manager.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Revalidations)
	assert.WithinDuration(t, expires, got.Expires, time.Second)
	assert.WithinDuration(t, stored.CachedAt, got.CachedAt, time.Second)

	ttl, err := client.TTL(ctx, key.String()).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, StaleRetention)
}

func TestManager_RevalidatedMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Revalidated(context.Background(), issuesKey("9"), time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := issuesKey("1")

	require.NoError(t, manager.Set(ctx, key, testEntry(`"abc"`, time.Now().Add(time.Minute))))
	require.NoError(t, manager.Delete(ctx, key))

	_, err := manager.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_Purge(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	fresh := time.Now().Add(time.Minute)

	purged := []CacheKey{
		{Path: "/repos/octocat/hello-world/issues"},
		issuesKey("1"),
		issuesKey("2"),
		{Path: "/repos/octocat/hello-world/issues", Principal: PrincipalFor("ghp_token")},
	}
	kept := []CacheKey{
		{Path: "/repos/octocat/hello-world/issues/1"},
		{Path: "/repos/octocat/hello-world/pulls", Query: url.Values{"page": {"1"}}},
	}
	for _, key := range append(purged, kept...) {
		require.NoError(t, manager.Set(ctx, key, testEntry(`"e"`, fresh)))
	}

	n, err := manager.Purge(ctx, "repos/octocat/hello-world/issues/")
	require.NoError(t, err)
	assert.Equal(t, len(purged), n)

	for _, key := range purged {
		_, err := manager.Get(ctx, key)
		assert.ErrorIs(t, err, ErrCacheMiss, key.String())
	}
	for _, key := range kept {
		_, err := manager.Get(ctx, key)
		assert.NoError(t, err, key.String())
	}

	n, err = manager.Purge(ctx, "/repos/octocat/hello-world/issues")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_SetNilEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	assert.Error(t, manager.Set(context.Background(), issuesKey("1"), nil))
}

func TestEscapePattern(t *testing.T) {
	assert.Equal(t, `gh:repos/o/r`, escapePattern("gh:repos/o/r"))
	assert.Equal(t, `gh:search/code:q=a\*b\?\[c\]`, escapePattern("gh:search/code:q=a*b?[c]"))
}
