package client

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sternrassler/ghkit/pkg/pagination"
	"github.com/google/go-querystring/query"
)

// RequestOptions are per-request settings.
type RequestOptions struct {
	// Query parameters added to the request URL
	Query url.Values

	// Header values added to the request
	Header http.Header

	// Pagination settings; consumed by Paginate and never sent to GitHub
	Pagination *pagination.Options
}

// ListOptions are the pagination query parameters GitHub list endpoints
// accept. Embed it in endpoint-specific option structs.
type ListOptions struct {
	Page    int `url:"page,omitempty"`
	PerPage int `url:"per_page,omitempty"`
}

// QueryFrom encodes a struct with `url` tags into query parameters.
func QueryFrom(params any) (url.Values, error) {
	values, err := query.Values(params)
	if err != nil {
		return nil, fmt.Errorf("encode query parameters: %w", err)
	}
	return values, nil
}

// WithParams returns options whose query holds the encoded params.
func WithParams(params any) (*RequestOptions, error) {
	values, err := QueryFrom(params)
	if err != nil {
		return nil, err
	}
	return &RequestOptions{Query: values}, nil
}

// clone returns a deep copy without pagination settings.
func (o *RequestOptions) clone() *RequestOptions {
	out := &RequestOptions{
		Query:  url.Values{},
		Header: http.Header{},
	}
	if o == nil {
		return out
	}
	for k, v := range o.Query {
		out.Query[k] = append([]string(nil), v...)
	}
	for k, v := range o.Header {
		out.Header[k] = append([]string(nil), v...)
	}
	return out
}

// addMissing sets every value of extra whose key is not present yet.
func addMissing(dst, extra url.Values) {
	for k, v := range extra {
		if _, ok := dst[k]; ok {
			continue
		}
		dst[k] = append([]string(nil), v...)
	}
}
