package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StaleRetention is how long an entry is kept in Redis after its freshness
// window so it can still be revalidated.
const StaleRetention = 24 * time.Hour

// purgeBatch bounds the number of keys deleted per DEL command.
const purgeBatch = 100

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager keeps GitHub responses in Redis, keyed by CacheKey.
type Manager struct {
	redis     *redis.Client
	retention time.Duration
}

// NewManager returns a Manager that retains entries for StaleRetention past
// their freshness window. It panics on a nil client.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{redis: redisClient, retention: StaleRetention}
}

// WithRetention overrides how long entries outlive their freshness window.
func (m *Manager) WithRetention(d time.Duration) *Manager {
	if d >= 0 {
		m.retention = d
	}
	return m
}

// Get returns the entry stored for key, stale or not. Callers revalidate
// instead of trusting freshness. A missing key yields ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	entry, err := m.load(ctx, key.String())
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			CacheMisses.Inc()
		}
		return nil, err
	}
	CacheHits.WithLabelValues("redis").Inc()
	return entry, nil
}

// Set stores entry under key.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	return m.save(ctx, key.String(), entry)
}

// Revalidated records that a 304 confirmed the entry under key and moves
// its freshness window to expires. The updated entry is returned.
func (m *Manager) Revalidated(ctx context.Context, key CacheKey, expires time.Time) (*CacheEntry, error) {
	redisKey := key.String()

	entry, err := m.load(ctx, redisKey)
	if err != nil {
		return nil, err
	}
	entry.revalidate(expires)

	if err := m.save(ctx, redisKey, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes the entry stored under key.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Purge removes every entry cached for path, whatever its query or
// credential. It returns the number of entries removed.
func (m *Manager) Purge(ctx context.Context, path string) (int, error) {
	base := CacheKey{Path: path}.String()

	keys := []string{base}
	iter := m.redis.Scan(ctx, 0, escapePattern(base)+":*", purgeBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("purge").Inc()
		return 0, fmt.Errorf("redis scan: %w", err)
	}

	removed := 0
	for start := 0; start < len(keys); start += purgeBatch {
		end := min(start+purgeBatch, len(keys))
		n, err := m.redis.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			CacheErrors.WithLabelValues("purge").Inc()
			return removed, fmt.Errorf("redis del: %w", err)
		}
		removed += int(n)
	}
	return removed, nil
}

func (m *Manager) load(ctx context.Context, redisKey string) (*CacheEntry, error) {
	data, err := m.redis.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

// save writes entry with a Redis TTL covering freshness plus retention.
func (m *Manager) save(ctx context.Context, redisKey string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	// A zero expiration would persist the key forever
	ttl := max(entry.TTL()+m.retention, time.Second)

	if err := m.redis.Set(ctx, redisKey, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.WithLabelValues("redis").Add(float64(len(data)))
	return nil
}

var patternEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapePattern(s string) string {
	return patternEscaper.Replace(s)
}
