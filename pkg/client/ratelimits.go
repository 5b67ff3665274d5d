package client

import (
	"context"
	"sort"
	"time"

	"github.com/Sternrassler/ghkit/pkg/ratelimit"
)

// rateLimitPayload is the body of GET /rate_limit.
type rateLimitPayload struct {
	Resources map[string]struct {
		Limit     int   `json:"limit"`
		Remaining int   `json:"remaining"`
		Used      int   `json:"used"`
		Reset     int64 `json:"reset"`
	} `json:"resources"`
}

// RateLimits fetches the current limits of every resource from
// /rate_limit. The request itself does not count against any limit.
// States are sorted by resource name.
func (c *Client) RateLimits(ctx context.Context) ([]ratelimit.RateLimitState, error) {
	resp, err := c.Get(ctx, "/rate_limit", nil)
	if err != nil {
		return nil, err
	}

	var payload rateLimitPayload
	if err := resp.Decode(&payload); err != nil {
		return nil, err
	}

	now := time.Now()
	states := make([]ratelimit.RateLimitState, 0, len(payload.Resources))
	for name, r := range payload.Resources {
		state := ratelimit.RateLimitState{
			Resource:   name,
			Limit:      r.Limit,
			Remaining:  r.Remaining,
			Used:       r.Used,
			LastUpdate: now,
			Observed:   true,
		}
		if r.Reset > 0 {
			state.ResetAt = time.Unix(r.Reset, 0)
		}
		state.UpdateHealth()
		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].Resource < states[j].Resource
	})

	return states, nil
}
