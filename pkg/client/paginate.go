package client

import (
	"context"

	"github.com/Sternrassler/ghkit/pkg/links"
	"github.com/Sternrassler/ghkit/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons the fetch closure reports "no more data".
const (
	haltNoNext      = "no_next"
	haltRateLimited = "rate_limited"
)

var githubPaginationHalts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "github_pagination_halts_total",
	Help: "Paginated requests that stopped before following the next link, by reason",
}, []string{"reason"})

// Paginate performs a paginated GET of path and decodes each page into T.
//
// The pagination mode comes from opts.Pagination, falling back to the
// client-wide defaults: auto drains every page into Result.Data, enumerable
// returns Result.Pages without making any request, single fetches one page.
// Pages after the first are concatenated when T is a slice, or folded with
// merge when it is non-nil.
func Paginate[T any](ctx context.Context, c *Client, path string, opts *RequestOptions, merge pagination.MergeFunc[T, *Response]) (*pagination.Result[T, *Response], error) {
	var popts *pagination.Options
	if opts != nil {
		popts = opts.Pagination
	}
	reqOpts := opts.clone()

	mode := pagination.Resolve(popts, c.config.paginationDefaults())

	if perPage := pagination.PerPage(popts, c.config.paginationDefaults(), mode); perPage > 0 {
		values, err := QueryFrom(ListOptions{PerPage: perPage})
		if err != nil {
			return nil, err
		}
		addMissing(reqOpts.Query, values)
	}

	followOpts := &RequestOptions{Header: reqOpts.Header}
	logger := c.logger.With().
		Str("endpoint", path).
		Str("mode", string(mode)).
		Logger()

	fetch := func(ctx context.Context, prev *pagination.Page[T, *Response]) (*pagination.Page[T, *Response], error) {
		var resp *Response
		var err error

		if prev == nil {
			resp, err = c.Get(ctx, path, reqOpts)
		} else {
			if !prev.Response.Rels().Has(links.RelNext) {
				githubPaginationHalts.WithLabelValues(haltNoNext).Inc()
				return nil, nil
			}

			resource := prev.Response.Resource()
			halt, checkErr := c.tracker.ShouldHalt(ctx, resource)
			if checkErr != nil {
				return nil, checkErr
			}
			if halt {
				logger.Warn().
					Str("resource", resource).
					Int("rate_limit_buffer", c.tracker.Buffer()).
					Msg("Rate limit exhausted, stopping pagination")
				githubPaginationHalts.WithLabelValues(haltRateLimited).Inc()
				return nil, nil
			}

			resp, err = c.Follow(ctx, prev.Response, links.RelNext, followOpts)
		}
		if err != nil {
			return nil, err
		}

		var data T
		if err := resp.Decode(&data); err != nil {
			return nil, err
		}

		logger.Debug().
			Bool("from_cache", resp.FromCache).
			Msg("Fetched page")

		return &pagination.Page[T, *Response]{Data: data, Response: resp}, nil
	}

	e := pagination.New[T, *Response](pagination.EnumeratorOptions(popts, mode), fetch)
	result := &pagination.Result[T, *Response]{Mode: mode, Pages: e}

	if mode == pagination.ModeEnumerable {
		return result, nil
	}

	data, err := pagination.Collect(ctx, e, merge)
	if err != nil {
		return nil, err
	}
	result.Data = data

	logger.Debug().
		Int("page", e.PageNum()).
		Str("stop_reason", string(e.StopReason())).
		Msg("Pagination complete")

	return result, nil
}

// List fetches a bare-list endpoint and returns every element. Without
// pagination options it follows the client-wide defaults; an enumerable
// result is drained.
func List[E any](ctx context.Context, c *Client, path string, opts *RequestOptions) ([]E, error) {
	result, err := Paginate[[]E](ctx, c, path, opts, nil)
	if err != nil {
		return nil, err
	}
	if result.Mode == pagination.ModeEnumerable {
		return pagination.Collect(ctx, result.Pages, nil)
	}
	return result.Data, nil
}

// SearchResult is the payload of the search endpoints.
type SearchResult[E any] struct {
	TotalCount        int  `json:"total_count"`
	IncompleteResults bool `json:"incomplete_results"`
	Items             []E  `json:"items"`
}

// MergeSearch appends each page's items and keeps the latest total count.
// Results are incomplete if any page was.
func MergeSearch[E any]() pagination.MergeFunc[SearchResult[E], *Response] {
	return func(acc SearchResult[E], page *pagination.Page[SearchResult[E], *Response]) SearchResult[E] {
		acc.Items = append(acc.Items, page.Data.Items...)
		acc.TotalCount = page.Data.TotalCount
		acc.IncompleteResults = acc.IncompleteResults || page.Data.IncompleteResults
		return acc
	}
}

// Search runs a search query across pages and merges the items.
func Search[E any](ctx context.Context, c *Client, path string, opts *RequestOptions) (SearchResult[E], error) {
	result, err := Paginate[SearchResult[E]](ctx, c, path, opts, MergeSearch[E]())
	if err != nil {
		return SearchResult[E]{}, err
	}
	if result.Mode == pagination.ModeEnumerable {
		return pagination.Collect(ctx, result.Pages, MergeSearch[E]())
	}
	return result.Data, nil
}
