package pagination

import (
	"context"
	"errors"
	"iter"
	"reflect"

	"github.com/Sternrassler/ghkit/pkg/links"
	"github.com/rs/zerolog/log"
)

// Response is the response context of a fetched page.
type Response interface {
	// Rels returns the relations parsed from the Link header.
	Rels() links.Rels
}

// Page is one fetched page: decoded payload plus its response.
type Page[T any, R Response] struct {
	Data     T
	Response R
}

// FetchFunc fetches the page following prev. prev is nil on the first call,
// meaning "fetch page 1". Returning a nil page (or one with empty data)
// signals that there is nothing more to fetch.
type FetchFunc[T any, R Response] func(ctx context.Context, prev *Page[T, R]) (*Page[T, R], error)

// Enumerator lazily walks a paginated collection one page at a time.
// It is not safe for concurrent use and is not reusable across requests.
type Enumerator[T any, R Response] struct {
	fetch           FetchFunc[T, R]
	maxPages        int
	includeResponse bool

	pageNum    int
	first      *Page[T, R]
	current    *Page[T, R]
	started    bool
	pending    bool
	done       bool
	totalPages int
	stopReason StopReason
}

// New creates an enumerator bound to fetch.
func New[T any, R Response](opts Options, fetch FetchFunc[T, R]) *Enumerator[T, R] {
	maxPages := opts.MaxPages
	if maxPages < 0 {
		maxPages = 0
	}
	return &Enumerator[T, R]{
		fetch:           fetch,
		maxPages:        maxPages,
		includeResponse: opts.IncludeResponse,
		pageNum:         1,
	}
}

// WithResponse makes Iterate pass each page's response to the callback.
// Call it before iterating.
func (e *Enumerator[T, R]) WithResponse() *Enumerator[T, R] {
	e.includeResponse = true
	return e
}

// PageNum returns the current 1-based page index.
func (e *Enumerator[T, R]) PageNum() int {
	return e.pageNum
}

// MaxPages returns the configured page bound (0 = unbounded).
func (e *Enumerator[T, R]) MaxPages() int {
	return e.maxPages
}

// Done reports whether the enumerator has stopped.
func (e *Enumerator[T, R]) Done() bool {
	return e.done
}

// StopReason returns why iteration stopped, or "" while still running.
func (e *Enumerator[T, R]) StopReason() StopReason {
	return e.stopReason
}

// TotalPages returns the total page count taken from the first page's
// "last" relation, or 1 when there is none. Page 1 is fetched if needed
// and is not fetched again by a later Iterate. The value is cached.
func (e *Enumerator[T, R]) TotalPages(ctx context.Context) (int, error) {
	if e.totalPages > 0 {
		return e.totalPages, nil
	}
	if err := e.start(ctx); err != nil {
		return 0, err
	}

	e.totalPages = 1
	if e.first != nil {
		if last, ok := e.first.Response.Rels().Page(links.RelLast); ok {
			e.totalPages = last
		}
	}

	log.Debug().
		Int("total_pages", e.totalPages).
		Msg("Total pages resolved")

	return e.totalPages, nil
}

// Iterate calls fn once per page, in page order, until a stop condition is
// met. resp is the zero value unless WithResponse was called. An error from
// fn or from the fetch stops iteration and is returned as-is; pages already
// passed to fn stay valid.
func (e *Enumerator[T, R]) Iterate(ctx context.Context, fn func(data T, resp R) error) error {
	return e.each(ctx, func(p *Page[T, R]) error {
		var resp R
		if e.includeResponse {
			resp = p.Response
		}
		return fn(p.Data, resp)
	})
}

// All returns a range-over-func view of Iterate. A fetch error is yielded
// once with the zero value and ends the sequence.
func (e *Enumerator[T, R]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		err := e.Iterate(ctx, func(data T, _ R) error {
			if !yield(data, nil) {
				return errStopYield
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopYield) {
			var zero T
			yield(zero, err)
		}
	}
}

var errStopYield = errors.New("pagination: iteration stopped by consumer")

// each drives the enumerator, handing fn the full page.
func (e *Enumerator[T, R]) each(ctx context.Context, fn func(p *Page[T, R]) error) error {
	if e.done {
		return nil
	}
	if err := e.start(ctx); err != nil {
		return err
	}

	for !e.done {
		if e.pending {
			e.pending = false
			if err := fn(e.current); err != nil {
				return err
			}
		}

		if err := e.advance(ctx); err != nil {
			return err
		}
	}

	return nil
}

// start fetches page 1 once.
func (e *Enumerator[T, R]) start(ctx context.Context) error {
	if e.started {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	page, err := e.fetch(ctx, nil)
	if err != nil {
		return err
	}
	e.started = true

	if isEmpty(page) {
		e.stop(StopExhausted)
		return nil
	}

	PagesFetched.Inc()
	e.first = page
	e.current = page
	e.pending = true
	return nil
}

// advance moves past the current page, applying the stop checks in order.
// On a fetch error the page index is left unchanged so the same page is
// attempted again by a later call.
func (e *Enumerator[T, R]) advance(ctx context.Context) error {
	next := e.pageNum + 1

	if e.maxPages > 0 && next > e.maxPages {
		e.pageNum = next
		e.stop(StopMaxPages)
		return nil
	}
	if e.totalPages > 0 && next > e.totalPages {
		e.pageNum = next
		e.stop(StopTotalPages)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	page, err := e.fetch(ctx, e.current)
	if err != nil {
		return err
	}
	e.pageNum = next
	if isEmpty(page) {
		e.stop(StopExhausted)
		return nil
	}

	PagesFetched.Inc()
	e.current = page
	e.pending = true
	return nil
}

func (e *Enumerator[T, R]) stop(reason StopReason) {
	e.done = true
	e.pending = false
	e.stopReason = reason
	Stops.WithLabelValues(string(reason)).Inc()

	log.Debug().
		Int("page", e.pageNum).
		Str("stop_reason", string(reason)).
		Msg("Pagination stopped")
}

// isEmpty reports whether a fetched page carries no data: a nil page, a nil
// pointer or interface, or an empty slice or map.
func isEmpty[T any, R Response](p *Page[T, R]) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(any(p.Data))
	switch v.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
