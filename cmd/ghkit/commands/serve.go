package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/ghkit/pkg/client"
	"github.com/Sternrassler/ghkit/pkg/logging"
	"github.com/Sternrassler/ghkit/pkg/metrics"
	"github.com/Sternrassler/ghkit/pkg/pagination"
	"github.com/Sternrassler/ghkit/pkg/ratelimit"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// proxyTimeout bounds one proxied call including all of its pages.
const proxyTimeout = 60 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a paginating GitHub API proxy",
		Long: `Run an HTTP proxy in front of the GitHub REST API.

GET /api/<path> is forwarded to GitHub. With ?paginate=auto every page is
fetched and merged into one JSON array; max_pages bounds the walk. The
proxy shares the rate limit budget and response cache of every ghkit
process pointed at the same redis.

Also serves /health, /ready and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, cleanup, err := openClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			logger := logging.NewLogger("ghkit-serve")
			srv := &http.Server{
				Addr:              addr,
				Handler:           newServeMux(c, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info().
					Str("addr", addr).
					Str("base_url", c.Config().BaseURL).
					Msg("Starting GitHub proxy server")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info().Msg("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")

	return cmd
}

func newServeMux(c *client.Client, logger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(c))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/", apiProxyHandler(c, logger))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports ready while the rate limit store is reachable and
// the core budget is not held back.
func readyHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := c.Tracker().ShouldAllowRequest(ctx, ratelimit.ResourceCore); err != nil {
			http.Error(w, fmt.Sprintf("not ready: %v", err), http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// apiProxyHandler forwards GET /api/<path> to GitHub.
//
// Query parameters paginate (auto or single) and max_pages control
// pagination and are not forwarded; everything else is passed through.
func apiProxyHandler(c *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Example: /api/repos/cli/cli/issues -> /repos/cli/cli/issues
		path := strings.TrimPrefix(r.URL.Path, "/api")
		if path == "" || path == "/" {
			http.Error(w, "missing API path", http.StatusBadRequest)
			return
		}

		query := r.URL.Query()
		popts := &pagination.Options{}
		switch mode := query.Get("paginate"); mode {
		case "", "single":
		case "auto":
			popts.AutoPaginate = true
		default:
			http.Error(w, fmt.Sprintf("unsupported paginate mode %q", mode), http.StatusBadRequest)
			return
		}
		if raw := query.Get("max_pages"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "max_pages must be a non-negative integer", http.StatusBadRequest)
				return
			}
			popts.MaxPages = n
		}
		query.Del("paginate")
		query.Del("max_pages")

		ctx, cancel := context.WithTimeout(r.Context(), proxyTimeout)
		defer cancel()

		result, err := client.Paginate[any](ctx, c, path, &client.RequestOptions{
			Query:      query,
			Pagination: popts,
		}, mergeJSON)
		if err != nil {
			writeProxyError(w, logger, path, err)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Ghkit-Pages", strconv.Itoa(result.Pages.PageNum()-1))
		if reason := result.Pages.StopReason(); reason != "" {
			w.Header().Set("X-Ghkit-Stop-Reason", string(reason))
		}
		w.WriteHeader(http.StatusOK)
		if err := writeJSON(w, result.Data); err != nil {
			logger.Warn().Err(err).Str("endpoint", path).Msg("Failed to write response")
		}
	}
}

// writeProxyError maps client errors onto proxy status codes.
func writeProxyError(w http.ResponseWriter, logger zerolog.Logger, path string, err error) {
	var rlErr *ratelimit.RateLimitError
	var apiErr *client.APIError

	switch {
	case errors.As(err, &rlErr):
		if wait := time.Until(rlErr.Reset); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		}
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400:
		http.Error(w, apiErr.Error(), apiErr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "GitHub request timed out", http.StatusGatewayTimeout)
	default:
		http.Error(w, fmt.Sprintf("GitHub request failed: %v", err), http.StatusBadGateway)
	}

	logger.Warn().
		Err(err).
		Str("endpoint", path).
		Msg("Proxy request failed")
}
