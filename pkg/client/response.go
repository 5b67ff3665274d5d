package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sternrassler/ghkit/pkg/links"
	"github.com/Sternrassler/ghkit/pkg/ratelimit"
)

// Response is a completed GitHub response with its body already read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// URL is the request URL, including the query string
	URL *url.URL

	// FromCache is true when a 304 was answered from the cache
	FromCache bool

	rels links.Rels
}

// Rels returns the relations of the Link header. A nil response has none.
func (r *Response) Rels() links.Rels {
	if r == nil {
		return nil
	}
	if r.rels == nil {
		r.rels = links.ParseAll(r.Header.Values("Link"))
	}
	return r.rels
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// RateLimit returns the rate limit carried by the response headers, or nil
// when there is none or it cannot be parsed.
func (r *Response) RateLimit() *ratelimit.RateLimitState {
	if r == nil {
		return nil
	}
	state, err := ratelimit.ParseHeaders(r.Header)
	if err != nil {
		return nil
	}
	return state
}

// Resource returns the rate limit resource the request counted against.
func (r *Response) Resource() string {
	if resource := r.Header.Get(ratelimit.HeaderResource); resource != "" {
		return resource
	}
	if r.URL != nil {
		return ratelimit.ResourceForPath(r.URL.Path)
	}
	return ratelimit.ResourceCore
}
