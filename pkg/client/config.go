package client

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/ghkit/pkg/pagination"
	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

// Config holds the client configuration. It is copied into the client on
// New and never changes afterwards.
type Config struct {
	// BaseURL of the REST API (GitHub Enterprise: https://host/api/v3)
	BaseURL string

	// User-Agent header (REQUIRED by GitHub)
	UserAgent string

	// Token is sent as a bearer token when set
	Token string

	// HTTPClient is the base client; the token transport wraps its transport
	HTTPClient *http.Client

	// Redis enables the conditional-request cache and shares rate limit
	// state across processes. Optional.
	Redis *redis.Client

	// Client-side pacing (0 = unlimited)
	RequestsPerSecond float64
	Burst             int

	// RateLimitBuffer blocks requests while remaining <= buffer until the
	// window resets. Negative disables blocking. Pagination stops at the
	// same threshold and keeps the pages already fetched.
	RateLimitBuffer int

	// Client-wide pagination defaults
	AutoPaginate bool
	Paginate     bool
	PerPage      int

	// Timeout per HTTP request
	Timeout time.Duration

	// Logger overrides the component logger
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		UserAgent:         userAgent,
		RequestsPerSecond: 10,
		Burst:             5,
		RateLimitBuffer:   0,
		Timeout:           30 * time.Second,
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var result error

	if c.UserAgent == "" {
		result = multierror.Append(result, fmt.Errorf("user-agent is required"))
	}

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid base url: %w", err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			result = multierror.Append(result, fmt.Errorf("base url must be http or https (got %q)", c.BaseURL))
		}
	}

	if c.RequestsPerSecond < 0 {
		result = multierror.Append(result, fmt.Errorf("requests_per_second must be >= 0 (got %v)", c.RequestsPerSecond))
	}

	if c.PerPage < 0 || c.PerPage > pagination.DefaultPerPage {
		result = multierror.Append(result, fmt.Errorf("per_page must be between 0 and %d (got %d)", pagination.DefaultPerPage, c.PerPage))
	}

	if c.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("timeout must be >= 0 (got %v)", c.Timeout))
	}

	return result
}

// paginationDefaults returns the client-wide pagination settings.
func (c Config) paginationDefaults() pagination.Defaults {
	return pagination.Defaults{
		AutoPaginate: c.AutoPaginate,
		Paginate:     c.Paginate,
		PerPage:      c.PerPage,
	}
}
