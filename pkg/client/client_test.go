package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/ghkit/internal/testutil"
	"github.com/Sternrassler/ghkit/pkg/links"
	"github.com/Sternrassler/ghkit/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

// newTestClient creates a client pointed at the mock server without
// client-side pacing.
func newTestClient(t *testing.T, mock *testutil.MockGitHub, configure ...func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig("ghkit-test/1.0")
	cfg.BaseURL = mock.URL()
	cfg.HTTPClient = mock.Client()
	cfg.RequestsPerSecond = 0
	logger := zerolog.Nop()
	cfg.Logger = &logger

	for _, fn := range configure {
		fn(&cfg)
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		contains    []string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("TestApp/1.0.0"),
			expectError: false,
		},
		{
			name:        "empty user agent",
			config:      Config{},
			expectError: true,
			contains:    []string{"user-agent is required"},
		},
		{
			name: "bad base url scheme",
			config: Config{
				UserAgent: "TestApp/1.0.0",
				BaseURL:   "ftp://example.com",
			},
			expectError: true,
			contains:    []string{"base url must be http or https"},
		},
		{
			name: "every problem reported",
			config: Config{
				RequestsPerSecond: -1,
				PerPage:           500,
			},
			expectError: true,
			contains: []string{
				"user-agent is required",
				"requests_per_second must be >= 0",
				"per_page must be between 0 and 100",
			},
		},
		{
			name: "auto and paginate together",
			config: func() Config {
				cfg := DefaultConfig("TestApp/1.0.0")
				cfg.AutoPaginate = true
				cfg.Paginate = true
				return cfg
			}(),
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				for _, want := range tt.contains {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("Error %q does not mention %q", err.Error(), want)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	userAgent := "TestApp/1.0.0"
	cfg := DefaultConfig(userAgent)

	if cfg.UserAgent != userAgent {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, userAgent)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.RequestsPerSecond <= 0 {
		t.Errorf("RequestsPerSecond = %v, should be > 0", cfg.RequestsPerSecond)
	}
	if cfg.AutoPaginate || cfg.Paginate {
		t.Error("Pagination should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() does not validate: %v", err)
	}
}

func TestDo_HeadersSet(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetResponse("/user", testutil.NewJSONResponse(`{"login":"octocat"}`))

	client := newTestClient(t, mock, func(c *Config) {
		c.Token = "ghp_test"
	})

	if _, err := client.Get(context.Background(), "/user", nil); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	headers := mock.LastRequestHeader
	if got := headers.Get("User-Agent"); got != "ghkit-test/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := headers.Get("Accept"); got != DefaultAccept {
		t.Errorf("Accept = %q, want %q", got, DefaultAccept)
	}
	if got := headers.Get("X-GitHub-Api-Version"); got != APIVersion {
		t.Errorf("X-GitHub-Api-Version = %q, want %q", got, APIVersion)
	}
	if got := headers.Get("Authorization"); got != "Bearer ghp_test" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
}

func TestDo_NoTokenNoAuthorization(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetResponse("/user", testutil.NewJSONResponse(`{}`))

	client := newTestClient(t, mock)
	if _, err := client.Get(context.Background(), "/user", nil); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got := mock.LastRequestHeader.Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want none", got)
	}
}

func TestGet_QueryAndHeaders(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetResponse("/repos/o/r/issues", testutil.NewJSONResponse(`[]`))

	client := newTestClient(t, mock)
	opts := &RequestOptions{
		Query:  map[string][]string{"state": {"closed"}},
		Header: http.Header{"Accept": []string{"application/vnd.github.raw+json"}},
	}

	resp, err := client.Get(context.Background(), "repos/o/r/issues?state=open&sort=updated", opts)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 || reqs[0] != "/repos/o/r/issues?sort=updated&state=closed" {
		t.Errorf("Requests = %v", reqs)
	}
	if got := mock.LastRequestHeader.Get("Accept"); got != "application/vnd.github.raw+json" {
		t.Errorf("Accept = %q", got)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if state := resp.RateLimit(); state == nil || state.Remaining != 4999 {
		t.Errorf("RateLimit() = %+v, want remaining 4999", state)
	}
}

func TestFollow(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetPages("/repos/o/r/pulls", `[{"number":1}]`, `[{"number":2}]`, `[{"number":3}]`)

	client := newTestClient(t, mock)
	ctx := context.Background()

	first, err := client.Get(ctx, "/repos/o/r/pulls", nil)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if last, ok := first.Rels().Page(links.RelLast); !ok || last != 3 {
		t.Errorf("last page = %d, %v; want 3", last, ok)
	}

	last, err := client.Follow(ctx, first, links.RelLast, nil)
	if err != nil {
		t.Fatalf("Follow(last) failed: %v", err)
	}
	var pulls []struct{ Number int }
	if err := last.Decode(&pulls); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(pulls) != 1 || pulls[0].Number != 3 {
		t.Errorf("last page = %+v", pulls)
	}

	_, err = client.Follow(ctx, last, links.RelNext, nil)
	if !errors.Is(err, ErrNoRelation) {
		t.Errorf("Follow(next) on last page error = %v, want ErrNoRelation", err)
	}
}

func TestDo_RateLimitBlock(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetRateLimit(5000, 1, time.Now().Add(time.Hour))
	mock.SetResponse("/user", testutil.NewJSONResponse(`{}`))

	client := newTestClient(t, mock)
	ctx := context.Background()

	// First request spends the last one
	if _, err := client.Get(ctx, "/user", nil); err != nil {
		t.Fatalf("First Get() failed: %v", err)
	}

	_, err := client.Get(ctx, "/user", nil)
	var rlErr *ratelimit.RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("Expected *ratelimit.RateLimitError, got %v", err)
	}
	if rlErr.Resource != ratelimit.ResourceCore {
		t.Errorf("Resource = %q, want core", rlErr.Resource)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", mock.GetRequestCount())
	}
}

func TestDo_RateLimitBlockDisabled(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetRateLimit(5000, 0, time.Now().Add(time.Hour))
	mock.SetResponse("/user", testutil.NewJSONResponse(`{}`))

	client := newTestClient(t, mock, func(c *Config) {
		c.RateLimitBuffer = -1
	})

	for i := 0; i < 2; i++ {
		if _, err := client.Get(context.Background(), "/user", nil); err != nil {
			t.Fatalf("Get() #%d failed: %v", i+1, err)
		}
	}
}

func TestDo_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		response    testutil.MockResponse
		remaining   int
		wantStatus  int
		wantClass   ErrorClass
		wantMessage string
	}{
		{
			name:        "not found",
			response:    testutil.MockResponse{StatusCode: 404, Body: `{"message":"Not Found","documentation_url":"https://docs.github.com/rest"}`},
			remaining:   5000,
			wantStatus:  404,
			wantClass:   ErrorClassClient,
			wantMessage: "Not Found",
		},
		{
			name:        "server error",
			response:    testutil.NewServerErrorResponse(),
			remaining:   5000,
			wantStatus:  500,
			wantClass:   ErrorClassServer,
			wantMessage: "Server Error",
		},
		{
			name:        "primary rate limit",
			response:    testutil.NewRateLimitedResponse(),
			remaining:   0,
			wantStatus:  403,
			wantClass:   ErrorClassRateLimit,
			wantMessage: "API rate limit exceeded",
		},
		{
			name:        "secondary rate limit",
			response:    testutil.NewSecondaryRateLimitResponse(),
			remaining:   5000,
			wantStatus:  429,
			wantClass:   ErrorClassRateLimit,
			wantMessage: "You have exceeded a secondary rate limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockGitHub()
			defer mock.Close()
			mock.SetRateLimit(5000, tt.remaining, time.Now().Add(time.Hour))
			mock.SetResponse("/repos/o/r", tt.response)

			client := newTestClient(t, mock)
			_, err := client.Get(context.Background(), "/repos/o/r", nil)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantStatus)
			}
			if apiErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.wantClass)
			}
			if apiErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMessage)
			}
		})
	}
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	cfg := DefaultConfig("ghkit-test/1.0")
	cfg.BaseURL = baseURL
	cfg.RequestsPerSecond = 0
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.Get(context.Background(), "/user", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", apiErr.ErrorClass)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	client := newTestClient(t, mock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "/user", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
}

func TestDo_Handle304NotModified(t *testing.T) {
	redisClient := setupTestRedis(t)

	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetPages("/repos/o/r/issues", `[{"id":1}]`, `[{"id":2}]`)

	client := newTestClient(t, mock, func(c *Config) {
		c.Redis = redisClient
	})
	ctx := context.Background()

	first, err := client.Get(ctx, "/repos/o/r/issues", nil)
	if err != nil {
		t.Fatalf("First Get() failed: %v", err)
	}
	if first.FromCache {
		t.Error("First response should not come from cache")
	}

	second, err := client.Get(ctx, "/repos/o/r/issues", nil)
	if err != nil {
		t.Fatalf("Second Get() failed: %v", err)
	}
	if !second.FromCache {
		t.Error("Second response should be served from cache")
	}
	if second.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", second.StatusCode)
	}
	if string(second.Body) != string(first.Body) {
		t.Errorf("Body = %s, want %s", second.Body, first.Body)
	}
	if !second.Rels().Has(links.RelNext) {
		t.Error("Cached response lost its Link header")
	}
	if mock.GetConditionalCount() != 1 {
		t.Errorf("ConditionalCount = %d, want 1", mock.GetConditionalCount())
	}
}

func TestRateLimits(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetRateLimit(5000, 4321, time.Now().Add(time.Hour))

	client := newTestClient(t, mock)
	states, err := client.RateLimits(context.Background())
	if err != nil {
		t.Fatalf("RateLimits() failed: %v", err)
	}

	if len(states) != 2 {
		t.Fatalf("len(states) = %d, want 2", len(states))
	}
	if states[0].Resource != "core" || states[1].Resource != "search" {
		t.Errorf("Resources = %q, %q; want sorted core, search", states[0].Resource, states[1].Resource)
	}
	if states[0].Remaining != 4321 {
		t.Errorf("core remaining = %d, want 4321", states[0].Remaining)
	}
}

func TestResponse_NilRels(t *testing.T) {
	var resp *Response
	if resp.Rels() != nil {
		t.Error("nil response should have no relations")
	}
	if resp.Rels().Has(links.RelNext) {
		t.Error("nil response should have no next relation")
	}
	if resp.RateLimit() != nil {
		t.Error("nil response should have no rate limit")
	}
}

func TestResponse_Decode(t *testing.T) {
	resp := &Response{Body: []byte("  ")}
	items := []int{1}
	if err := resp.Decode(&items); err != nil {
		t.Fatalf("Decode() of empty body failed: %v", err)
	}
	if len(items) != 1 {
		t.Error("Decode() of empty body should leave the target untouched")
	}

	resp = &Response{Body: []byte("{")}
	if err := resp.Decode(&items); err == nil {
		t.Error("Decode() of invalid JSON should fail")
	}
}

func TestResponse_Resource(t *testing.T) {
	resp := &Response{Header: http.Header{}}
	resp.Header.Set(ratelimit.HeaderResource, "search")
	if got := resp.Resource(); got != "search" {
		t.Errorf("Resource() = %q, want search", got)
	}

	resp = &Response{Header: http.Header{}}
	if got := resp.Resource(); got != ratelimit.ResourceCore {
		t.Errorf("Resource() = %q, want core", got)
	}
}
