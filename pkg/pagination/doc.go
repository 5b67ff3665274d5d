// Package pagination provides lazy, sequential iteration over paginated
// GitHub REST endpoints.
//
// GitHub paginates list endpoints with a Link header carrying "next" and
// "last" relations. This package does not talk HTTP itself; it drives a
// caller-supplied FetchFunc that fetches one page relative to the previous
// one, and decides when to stop.
//
// Example usage:
//
//	e := pagination.New(pagination.Options{MaxPages: 3}, fetch)
//	err := e.Iterate(ctx, func(issues []Issue, _ *client.Response) error {
//		for _, issue := range issues {
//			fmt.Println(issue.Title)
//		}
//		return nil
//	})
//
// The enumerator:
//   - Fetches page 1 only when iteration or TotalPages first needs it
//   - Yields pages strictly in order, one fetch at a time
//   - Stops on MaxPages, on a known total page count, or when the fetch
//     returns no data
//   - Passes fetch errors through unchanged
//
// Resolve and Collect implement the mode decision and accumulation used by
// client.Paginate: return the enumerator as-is, drain every page into one
// result, or fetch a single page.
package pagination
