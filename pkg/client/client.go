// Package client provides the GitHub REST client with rate limit tracking,
// conditional-request caching and pagination.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ghkit/pkg/cache"
	"github.com/Sternrassler/ghkit/pkg/logging"
	"github.com/Sternrassler/ghkit/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Prometheus metrics for GitHub client operations.
var (
	githubRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "github_requests_total",
		Help: "Total GitHub requests by endpoint and status",
	}, []string{"endpoint", "status"})

	githubRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "github_request_duration_seconds",
		Help:    "GitHub request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	githubErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "github_errors_total",
		Help: "Total GitHub errors by class",
	}, []string{"class"})
)

const (
	// DefaultAccept is the media type sent when the caller sets none.
	DefaultAccept = "application/vnd.github+json"

	// APIVersion is the REST API version requested.
	APIVersion = "2022-11-28"
)

// Client is the GitHub REST client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	limiter    *rate.Limiter
	tracker    *ratelimit.Tracker
	cache      *cache.Manager
	principal  string
	config     Config
	logger     zerolog.Logger
}

// New creates a new GitHub client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	logger := logging.NewLogger("github-client")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	// Rate limit state and cached responses are scoped to the credential
	principal := cache.PrincipalFor(cfg.Token)

	// Rate limit state and the response cache live in Redis when available
	var store ratelimit.Store = ratelimit.NewMemoryStore()
	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		store = ratelimit.NewRedisStore(cfg.Redis)
		cacheManager = cache.NewManager(cfg.Redis)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		httpClient: newHTTPClient(cfg),
		baseURL:    baseURL,
		limiter:    limiter,
		tracker:    ratelimit.NewTracker(store, principal, cfg.RateLimitBuffer, logger),
		cache:      cacheManager,
		principal:  principal,
		config:     cfg,
		logger:     logger,
	}, nil
}

// newHTTPClient wraps the configured base client with a bearer token
// transport when a token is set.
func newHTTPClient(cfg Config) *http.Client {
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{}
	}

	client := *base
	if cfg.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
		client = *oauth2.NewClient(ctx, src)
	}
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	return &client
}

// Do performs an HTTP request with pacing, rate limit gating, conditional
// caching and error classification. The response body is read and closed.
func (c *Client) Do(req *http.Request) (*Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path
	resource := ratelimit.ResourceForPath(c.apiPath(endpoint))

	startTime := time.Now()
	defer func() {
		githubRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Client-side pacing
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("wait for request slot: %w", err)
		}
	}

	// Step 2: Check Rate Limit
	if err := c.tracker.ShouldAllowRequest(ctx, resource); err != nil {
		var rlErr *ratelimit.RateLimitError
		if errors.As(err, &rlErr) {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Str("resource", resource).
				Msg("Request blocked by rate limiter")
			githubRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			return nil, err
		}
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	// Step 3: Headers
	req.Header.Set("User-Agent", c.config.UserAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", DefaultAccept)
	}
	if req.Header.Get("X-GitHub-Api-Version") == "" {
		req.Header.Set("X-GitHub-Api-Version", APIVersion)
	}

	// Step 4: Conditional request from cache
	var cacheKey cache.CacheKey
	var cachedEntry *cache.CacheEntry
	if c.cache != nil && req.Method == http.MethodGet {
		cacheKey = cache.CacheKey{
			Path:      endpoint,
			Query:     req.URL.Query(),
			Accept:    req.Header.Get("Accept"),
			Principal: c.principal,
		}

		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if entry != nil && cache.ShouldMakeConditionalRequest(entry) {
			cachedEntry = entry
			cache.AddConditionalHeaders(req, entry)
			cache.ConditionalRequestsSent.Inc()
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", entry.ETag).
				Msg("Making conditional request")
		}
	}

	// Step 5: Execute
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("query", req.URL.RawQuery).
		Msg("Executing GitHub request")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		githubErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		githubRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}

	body, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		githubErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			StatusCode: httpResp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}
	httpResp.Body = io.NopCloser(bytes.NewReader(body))

	// Step 6: Update Rate Limit from headers
	if state, err := c.tracker.UpdateFromHeaders(ctx, httpResp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	} else if state != nil {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("rate_limit_remaining", state.Remaining).
			Msg("Rate limit observed")
	}

	githubRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(httpResp.StatusCode)).Inc()

	// Step 7: 304 Not Modified served from cache
	if httpResp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()

		refreshed, err := c.cache.Revalidated(ctx, cacheKey, cache.Refreshed(httpResp.Header))
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record revalidation")
		} else {
			cachedEntry = refreshed
		}

		cached := cache.EntryToResponse(cachedEntry, httpResp.Header)
		return &Response{
			StatusCode: cached.StatusCode,
			Header:     cached.Header,
			Body:       cachedEntry.Data,
			URL:        req.URL,
			FromCache:  true,
		}, nil
	}

	// Step 8: Errors
	if httpResp.StatusCode >= 400 {
		apiErr := newAPIError(httpResp.StatusCode, httpResp.Header, body)
		githubErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", httpResp.StatusCode).
			Str("error_class", string(apiErr.ErrorClass)).
			Str("message", apiErr.Message).
			Msg("GitHub request error")

		return nil, apiErr
	}

	// Step 9: Update Cache on success
	if c.cache != nil && req.Method == http.MethodGet && httpResp.StatusCode == http.StatusOK {
		c.store(ctx, cacheKey, httpResp)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		URL:        req.URL,
	}, nil
}

// store caches a successful response when it can be revalidated later.
func (c *Client) store(ctx context.Context, key cache.CacheKey, resp *http.Response) {
	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		return
	}
	if !cache.ShouldMakeConditionalRequest(entry) {
		return
	}
	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache response")
		return
	}
	c.logger.Debug().
		Str("endpoint", key.Path).
		Str("etag", entry.ETag).
		Dur("ttl", entry.TTL()).
		Msg("Cached response")
}

// Get performs a GET request. path is relative to the base URL, or an
// absolute URL. opts.Query values replace those already in path.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	if opts != nil && len(opts.Query) > 0 {
		q := u.Query()
		for k, v := range opts.Query {
			q[k] = append([]string(nil), v...)
		}
		u.RawQuery = q.Encode()
	}

	return c.get(ctx, u, opts)
}

// Follow requests the link with the given relation from resp's Link
// header. Returns ErrNoRelation when there is none. opts.Query only adds
// parameters the link does not already carry.
func (c *Client) Follow(ctx context.Context, resp *Response, rel string, opts *RequestOptions) (*Response, error) {
	link, ok := resp.Rels().Get(rel)
	if !ok {
		return nil, fmt.Errorf("follow %q: %w", rel, ErrNoRelation)
	}

	u, err := c.resolve(link.URL)
	if err != nil {
		return nil, err
	}

	if opts != nil && len(opts.Query) > 0 {
		q := u.Query()
		addMissing(q, opts.Query)
		u.RawQuery = q.Encode()
	}

	return c.get(ctx, u, opts)
}

func (c *Client) get(ctx context.Context, u *url.URL, opts *RequestOptions) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if opts != nil {
		for k, v := range opts.Header {
			req.Header[k] = append([]string(nil), v...)
		}
	}
	return c.Do(req)
}

// resolve turns a path or absolute URL into a request URL.
func (c *Client) resolve(path string) (*url.URL, error) {
	u, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	if u.IsAbs() {
		return u, nil
	}
	return c.baseURL.ResolveReference(&url.URL{
		Path:     strings.TrimPrefix(u.Path, "/"),
		RawQuery: u.RawQuery,
	}), nil
}

// apiPath strips the base URL path prefix (GitHub Enterprise /api/v3).
func (c *Client) apiPath(path string) string {
	return "/" + strings.TrimPrefix(path, c.baseURL.Path)
}

// Tracker returns the rate limit tracker.
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// GetCache returns the cache manager, or nil when no Redis is configured.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
