package pagination

import (
	"context"
	"reflect"
)

// MergeFunc folds a page (after the first) into the accumulator and returns
// the new accumulator. The page's response is available for payloads that
// need it.
type MergeFunc[T any, R Response] func(acc T, page *Page[T, R]) T

// Result is the outcome of a paginated call. In ModeEnumerable only Pages
// is set and nothing has been fetched yet; otherwise Data holds the merged
// result.
type Result[T any, R Response] struct {
	Mode  Mode
	Data  T
	Pages *Enumerator[T, R]
}

// Collect drains e. The first page's data seeds the accumulator; every
// later page goes through merge, or Concat when merge is nil. On error the
// partial accumulator is discarded.
func Collect[T any, R Response](ctx context.Context, e *Enumerator[T, R], merge MergeFunc[T, R]) (T, error) {
	if merge == nil {
		merge = Concat[T, R]
	}

	var acc T
	seeded := false
	err := e.each(ctx, func(p *Page[T, R]) error {
		if !seeded {
			acc = p.Data
			seeded = true
			return nil
		}
		acc = merge(acc, p)
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return acc, nil
}

// Concat appends the page's items to acc when both are slices. Any other
// payload shape is left unmerged; use a MergeFunc for composite payloads.
func Concat[T any, R Response](acc T, page *Page[T, R]) T {
	av := reflect.ValueOf(&acc).Elem()
	pv := reflect.ValueOf(any(page.Data))
	if av.Kind() != reflect.Slice || pv.Kind() != reflect.Slice {
		return acc
	}
	if !pv.Type().AssignableTo(av.Type()) {
		return acc
	}
	av.Set(reflect.AppendSlice(av, pv))
	return acc
}
