package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/Sternrassler/ghkit/pkg/client"
	"github.com/Sternrassler/ghkit/pkg/pagination"
	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command
func NewGetCommand() *cobra.Command {
	var (
		auto     bool
		paginate bool
		search   bool
		include  bool
		maxPages int
		perPage  int
		fields   map[string]string
	)

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Fetch a GitHub REST endpoint",
		Long: `Fetch a GitHub REST endpoint and print the JSON result.

Without pagination flags one page is fetched. --auto follows the Link
header and merges every page into one array. --paginate prints each page
as a separate JSON document per line as it arrives. --auto wins when both
are given. --search merges the items of a search endpoint and keeps
total_count.`,
		Example: `  ghkit get /repos/cli/cli/issues --auto --max-pages 3
  ghkit get /search/issues -f q=repo:cli/cli --search
  ghkit get /orgs/github/repos --paginate --per-page 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// --auto wins over --paginate; only the page stream has a
			// per-page status to print.
			if include && (auto || search || !paginate) {
				return fmt.Errorf("--include only applies to --paginate output")
			}

			ctx := cmd.Context()
			c, cleanup, err := openClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			query := url.Values{}
			for k, v := range fields {
				query.Set(k, v)
			}
			opts := &client.RequestOptions{
				Query: query,
				Pagination: &pagination.Options{
					AutoPaginate:    auto || search,
					Paginate:        paginate,
					MaxPages:        maxPages,
					PerPage:         perPage,
					IncludeResponse: include,
				},
			}

			out := cmd.OutOrStdout()
			path := args[0]

			if search {
				result, err := client.Search[json.RawMessage](ctx, c, path, opts)
				if err != nil {
					return err
				}
				return writeJSON(out, result)
			}

			result, err := client.Paginate[any](ctx, c, path, opts, mergeJSON)
			if err != nil {
				return err
			}

			if result.Mode != pagination.ModeEnumerable {
				return writeJSON(out, result.Data)
			}

			enc := json.NewEncoder(out)
			return result.Pages.Iterate(ctx, func(data any, resp *client.Response) error {
				if resp != nil {
					printPageStatus(cmd.ErrOrStderr(), result.Pages.PageNum(), resp)
				}
				return enc.Encode(data)
			})
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "fetch every page and merge them into one result")
	cmd.Flags().BoolVar(&paginate, "paginate", false, "print each page as one JSON document per line")
	cmd.Flags().BoolVar(&search, "search", false, "merge search results across pages")
	cmd.Flags().BoolVarP(&include, "include", "i", false, "print status and rate limit of each page to stderr (--paginate only)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum number of pages to fetch (0 = all)")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "page size sent as per_page (1-100)")
	cmd.Flags().StringToStringVarP(&fields, "field", "f", nil, "query parameter as key=value")

	return cmd
}

// mergeJSON concatenates decoded JSON arrays. Any other page shape keeps
// the first page's value.
func mergeJSON(acc any, page *pagination.Page[any, *client.Response]) any {
	items, ok := acc.([]any)
	if !ok {
		return acc
	}
	more, ok := page.Data.([]any)
	if !ok {
		return acc
	}
	return append(items, more...)
}

func printPageStatus(w io.Writer, page int, resp *client.Response) {
	status := fmt.Sprintf("page %d: %d", page, resp.StatusCode)
	if resp.FromCache {
		status += " (cached)"
	}
	if rl := resp.RateLimit(); rl != nil {
		status += fmt.Sprintf(" %s %d/%d", rl.Resource, rl.Remaining, rl.Limit)
	}
	fmt.Fprintln(w, status)
}
