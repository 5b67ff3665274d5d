// Package ratelimit tracks GitHub REST rate limits and gates requests.
// It reads the X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Used,
// X-RateLimit-Reset and X-RateLimit-Resource headers and keeps one state per
// rate-limit resource ("core", "search", ...).
package ratelimit

import (
	"strings"
	"time"
)

// Rate limit response headers.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderUsed      = "X-RateLimit-Used"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderResource  = "X-RateLimit-Resource"
)

// Rate limit resources.
const (
	ResourceCore       = "core"
	ResourceSearch     = "search"
	ResourceCodeSearch = "code_search"
	ResourceGraphQL    = "graphql"
)

// Thresholds for rate limit decisions.
const (
	// WarningRemaining logs a warning when fewer requests remain.
	WarningRemaining = 100

	// HealthyRatio is the fraction of the limit that must remain for the
	// state to count as healthy.
	HealthyRatio = 0.1
)

// RateLimitState is the last observed rate limit for one resource.
type RateLimitState struct {
	// Resource is the rate limit bucket (X-RateLimit-Resource).
	Resource string `json:"resource"`

	// Limit is the request quota of the window.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window.
	Remaining int `json:"remaining"`

	// Used is the number of requests made in the window.
	Used int `json:"used"`

	// ResetAt is when the window resets (from X-RateLimit-Reset, epoch seconds).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was recorded.
	LastUpdate time.Time `json:"last_update"`

	// Observed is false for the placeholder returned before any response
	// carried rate limit headers.
	Observed bool `json:"observed"`

	// IsHealthy is true while at least HealthyRatio of the limit remains.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// Exhausted reports whether an observed state has no requests left.
func (s *RateLimitState) Exhausted() bool {
	return s.Observed && s.Remaining <= 0
}

// NeedsBlock returns true if requests should be held back: remaining is at
// or below buffer and the window has not reset yet.
func (s *RateLimitState) NeedsBlock(buffer int) bool {
	if !s.Observed {
		return false
	}
	return s.Remaining <= buffer && s.TimeUntilReset() > 0
}

// NeedsWarning returns true when remaining requests drop below WarningRemaining.
func (s *RateLimitState) NeedsWarning() bool {
	return s.Observed && s.Remaining < WarningRemaining
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on Remaining and Limit.
func (s *RateLimitState) UpdateHealth() {
	if s.Limit <= 0 {
		s.IsHealthy = s.Remaining > 0
		return
	}
	s.IsHealthy = float64(s.Remaining) >= float64(s.Limit)*HealthyRatio
}

// ResourceForPath guesses the rate limit resource a request path counts
// against, before a response has told us.
func ResourceForPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/search/code"):
		return ResourceCodeSearch
	case strings.HasPrefix(path, "/search/"):
		return ResourceSearch
	case strings.HasPrefix(path, "/graphql"):
		return ResourceGraphQL
	default:
		return ResourceCore
	}
}
