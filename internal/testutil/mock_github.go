// Package testutil provides testing utilities for the GitHub client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock GitHub endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockGitHub is a configurable mock GitHub REST API for testing.
//
// Every response carries X-RateLimit-* headers. Remaining starts at the
// configured value and drops by one per request, except for 304 responses
// which GitHub does not count.
type MockGitHub struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	limit     int
	remaining int
	reset     time.Time
	resource  string

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	requests          []string
}

// NewMockGitHub creates a new mock GitHub server.
func NewMockGitHub() *MockGitHub {
	mock := &MockGitHub{
		handlers:  make(map[string]http.HandlerFunc),
		limit:     5000,
		remaining: 5000,
		reset:     time.Now().Add(time.Hour),
		resource:  "core",
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.requests = append(mock.requests, r.URL.RequestURI())

		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		rw := &rateLimitWriter{ResponseWriter: w, mock: mock}
		if exists {
			handler(rw, r)
			return
		}

		mock.defaultHandler(rw, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockGitHub) URL() string {
	return m.server.URL
}

// Client returns an HTTP client for the mock server.
func (m *MockGitHub) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockGitHub) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockGitHub) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.requests = nil
}

// SetRateLimit sets the rate limit window reported from now on.
func (m *MockGitHub) SetRateLimit(limit, remaining int, reset time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	m.remaining = remaining
	m.reset = reset
}

// SetRateLimitResource sets the X-RateLimit-Resource value.
func (m *MockGitHub) SetRateLimitResource(resource string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resource = resource
}

// SetHandler sets a custom handler for a specific path.
func (m *MockGitHub) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockGitHub) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPages serves bodies as consecutive pages of path, selected by the
// page query parameter (default 1). Responses carry a Link header with
// next/last/prev/first relations like GitHub, and an ETag per page.
// Pages past the end return an empty JSON array.
func (m *MockGitHub) SetPages(path string, bodies ...string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte(`{"message":"Invalid page"}`))
				return
			}
			page = n
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if page > len(bodies) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`[]`))
			return
		}

		etag := fmt.Sprintf(`"%s-%d"`, strings.Trim(path, "/"), page)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		if link := m.linkHeader(r, page, len(bodies)); link != "" {
			w.Header().Set("Link", link)
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "private, max-age=60, s-maxage=60")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(bodies[page-1]))
	})
}

// linkHeader builds the Link header for page of total.
func (m *MockGitHub) linkHeader(r *http.Request, page, total int) string {
	pageURL := func(n int) string {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(n))
		u := url.URL{Path: r.URL.Path, RawQuery: q.Encode()}
		return m.server.URL + u.String()
	}

	var parts []string
	if page < total {
		parts = append(parts,
			fmt.Sprintf(`<%s>; rel="next"`, pageURL(page+1)),
			fmt.Sprintf(`<%s>; rel="last"`, pageURL(total)))
	}
	if page > 1 {
		parts = append(parts,
			fmt.Sprintf(`<%s>; rel="prev"`, pageURL(page-1)),
			fmt.Sprintf(`<%s>; rel="first"`, pageURL(1)))
	}
	return strings.Join(parts, ", ")
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockGitHub) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockGitHub) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// Requests returns the request URIs received, in order.
func (m *MockGitHub) Requests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.requests...)
}

// defaultHandler answers /rate_limit and 404s everything else.
func (m *MockGitHub) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if r.URL.Path == "/rate_limit" {
		m.mu.RLock()
		body := fmt.Sprintf(`{"resources":{"core":{"limit":%d,"remaining":%d,"used":%d,"reset":%d},`+
			`"search":{"limit":30,"remaining":30,"used":0,"reset":%d}}}`,
			m.limit, m.remaining, m.limit-m.remaining, m.reset.Unix(), m.reset.Unix())
		m.mu.RUnlock()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
		return
	}

	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"message":"Not Found","documentation_url":"https://docs.github.com/rest"}`))
}

// rateLimitWriter stamps rate limit headers on every response.
type rateLimitWriter struct {
	http.ResponseWriter
	mock        *MockGitHub
	wroteHeader bool
}

func (w *rateLimitWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	m := w.mock
	m.mu.Lock()
	if status != http.StatusNotModified && m.remaining > 0 {
		m.remaining--
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(m.remaining))
	h.Set("X-RateLimit-Used", strconv.Itoa(m.limit-m.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(m.reset.Unix(), 10))
	h.Set("X-RateLimit-Resource", m.resource)
	m.mu.Unlock()

	w.ResponseWriter.WriteHeader(status)
}

func (w *rateLimitWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// NewJSONResponse creates a standard 200 OK response.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"ETag":          `"test-etag-123"`,
			"Cache-Control": "private, max-age=60, s-maxage=60",
			"Content-Type":  "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitedResponse creates a 403 primary rate limit rejection.
func NewRateLimitedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message":"API rate limit exceeded","documentation_url":"https://docs.github.com/rest/overview/rate-limits-for-the-rest-api"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewSecondaryRateLimitResponse creates a 429 secondary rate limit rejection.
func NewSecondaryRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"You have exceeded a secondary rate limit"}`,
		Headers: map[string]string{
			"Retry-After":  "60",
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message":"Server Error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
