package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	githubRateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "github_rate_limit_remaining",
		Help: "Number of requests remaining in the current GitHub rate limit window",
	}, []string{"resource"})

	githubRateLimitBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "github_rate_limit_blocks_total",
		Help: "Total number of requests blocked because the rate limit buffer was reached",
	}, []string{"resource"})
)

// RateLimitError is returned when a request is held back by the tracker.
type RateLimitError struct {
	Resource  string
	Remaining int
	Reset     time.Time
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github rate limit for %q nearly exhausted (%d remaining), resets at %s",
		e.Resource, e.Remaining, e.Reset.Format(time.RFC3339))
}

// Tracker monitors GitHub rate limits and gates requests.
type Tracker struct {
	store     Store
	principal string
	buffer    int
	logger    zerolog.Logger
}

// NewTracker creates a rate limit tracker for one credential. principal
// scopes the stored state (see StateKey) so trackers for different tokens
// sharing a store never see each other's quota. Requests are blocked while
// remaining <= buffer and the window has not reset; a negative buffer
// disables blocking.
func NewTracker(store Store, principal string, buffer int, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:     store,
		principal: principal,
		buffer:    buffer,
		logger:    logger,
	}
}

// Buffer returns the remaining count at or below which requests are held.
func (t *Tracker) Buffer() int {
	return t.buffer
}

// GetState retrieves the rate limit state for a resource.
// Returns an unobserved placeholder if nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context, resource string) (*RateLimitState, error) {
	state, err := t.store.Load(ctx, StateKey(t.principal, resource))
	if err != nil {
		return nil, fmt.Errorf("load rate limit state: %w", err)
	}
	if state == nil {
		t.logger.Debug().Str("resource", resource).Msg("No rate limit state recorded, assuming healthy")
		return &RateLimitState{
			Resource:  resource,
			IsHealthy: true,
		}, nil
	}
	return state, nil
}

// Exhausted reports whether the last observed state for resource has zero
// requests remaining.
func (t *Tracker) Exhausted(ctx context.Context, resource string) (bool, error) {
	state, err := t.GetState(ctx, resource)
	if err != nil {
		return false, err
	}
	return state.Exhausted(), nil
}

// ShouldHalt reports whether a paginated walk over resource must stop before
// its next page: the quota is exhausted, or a positive buffer would make
// ShouldAllowRequest hold the request back.
func (t *Tracker) ShouldHalt(ctx context.Context, resource string) (bool, error) {
	state, err := t.GetState(ctx, resource)
	if err != nil {
		return false, err
	}
	if state.Exhausted() {
		return true, nil
	}
	return t.buffer > 0 && state.NeedsBlock(t.buffer), nil
}

// UpdateFromHeaders parses GitHub rate limit headers and records the state.
// Returns nil state when the response carries no rate limit headers.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) (*RateLimitState, error) {
	state, err := ParseHeaders(headers)
	if err != nil || state == nil {
		return nil, err
	}

	if err := t.store.Save(ctx, StateKey(t.principal, state.Resource), state); err != nil {
		return nil, err
	}

	githubRateLimitRemaining.WithLabelValues(state.Resource).Set(float64(state.Remaining))

	switch {
	case state.Exhausted():
		t.logger.Error().
			Str("resource", state.Resource).
			Int("rate_limit_remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("GitHub rate limit exhausted")
	case state.NeedsWarning():
		t.logger.Warn().
			Str("resource", state.Resource).
			Int("rate_limit_remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("GitHub rate limit running low")
	default:
		t.logger.Debug().
			Str("resource", state.Resource).
			Int("rate_limit_remaining", state.Remaining).
			Bool("is_healthy", state.IsHealthy).
			Msg("GitHub rate limit state updated")
	}

	return state, nil
}

// ShouldAllowRequest returns a *RateLimitError if a request against resource
// must be held back.
func (t *Tracker) ShouldAllowRequest(ctx context.Context, resource string) error {
	if t.buffer < 0 {
		return nil
	}

	state, err := t.GetState(ctx, resource)
	if err != nil {
		return fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsBlock(t.buffer) {
		t.logger.Error().
			Str("resource", resource).
			Int("rate_limit_remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("GitHub rate limit buffer reached - blocking request")

		githubRateLimitBlocksTotal.WithLabelValues(resource).Inc()
		return &RateLimitError{
			Resource:  resource,
			Remaining: state.Remaining,
			Reset:     state.ResetAt,
		}
	}

	return nil
}

// ParseHeaders builds a state from response headers. Returns nil, nil when
// X-RateLimit-Remaining is absent.
func ParseHeaders(headers http.Header) (*RateLimitState, error) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	limit, err := optionalInt(headers, HeaderLimit)
	if err != nil {
		return nil, err
	}
	used, err := optionalInt(headers, HeaderUsed)
	if err != nil {
		return nil, err
	}
	reset, err := optionalInt(headers, HeaderReset)
	if err != nil {
		return nil, err
	}

	resource := headers.Get(HeaderResource)
	if resource == "" {
		resource = ResourceCore
	}

	state := &RateLimitState{
		Resource:   resource,
		Limit:      limit,
		Remaining:  remain,
		Used:       used,
		LastUpdate: time.Now(),
		Observed:   true,
	}
	if reset > 0 {
		state.ResetAt = time.Unix(int64(reset), 0)
	}
	state.UpdateHealth()

	return state, nil
}

func optionalInt(headers http.Header, name string) (int, error) {
	raw := headers.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s header: %w", name, err)
	}
	return v, nil
}
