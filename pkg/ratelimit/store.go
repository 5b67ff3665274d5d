package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix prefixes the rate limit Redis keys.
const RedisKeyPrefix = "gh:rate_limit:"

// AnonymousPrincipal scopes state recorded without a token. GitHub counts
// those requests per client IP.
const AnonymousPrincipal = "anonymous"

// StateKey identifies one rate limit window: GitHub quotas are per
// credential and per resource.
func StateKey(principal, resource string) string {
	if principal == "" {
		principal = AnonymousPrincipal
	}
	return principal + ":" + resource
}

// Store persists rate limit state by StateKey. Implementations must be
// safe for concurrent use since the counter is shared by every request.
type Store interface {
	// Load returns the state stored under key, or nil if none is stored.
	Load(ctx context.Context, key string) (*RateLimitState, error)

	// Save stores state under key.
	Save(ctx context.Context, key string, state *RateLimitState) error
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]RateLimitState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]RateLimitState)}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, key string) (*RateLimitState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[key]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, key string, state *RateLimitState) error {
	if state == nil {
		return fmt.Errorf("rate limit state cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = *state
	return nil
}

// RedisStore shares state across processes through Redis. Each window is
// one JSON value under gh:rate_limit:<principal>:<resource> that expires a
// minute after the window resets.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Key returns the Redis key for a StateKey.
func (s *RedisStore) Key(key string) string {
	return RedisKeyPrefix + key
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, key string) (*RateLimitState, error) {
	data, err := s.redis.Get(ctx, s.Key(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	var state RateLimitState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse rate limit state: %w", err)
	}
	return &state, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, key string, state *RateLimitState) error {
	if state == nil {
		return fmt.Errorf("rate limit state cannot be nil")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal rate limit state: %w", err)
	}

	ttl := state.TimeUntilReset() + time.Minute
	if err := s.redis.Set(ctx, s.Key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
