package commands

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/ghkit/pkg/cache"
	"github.com/spf13/cobra"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the Redis response cache",
	}
	cmd.AddCommand(newCachePurgeCommand())
	return cmd
}

func newCachePurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <path>...",
		Short: "Drop cached responses for API paths",
		Long: `Drop every cached response for the given API paths, across all
query parameters and credentials. The next request for them downloads the
body again instead of revalidating it.`,
		Example: `  ghkit --redis localhost:6379 cache purge /repos/cli/cli/issues`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return err
			}

			redisClient, err := openRedis(cmd.Context())
			if err != nil {
				return err
			}
			if redisClient == nil {
				return errors.New("cache purge needs --redis")
			}
			defer redisClient.Close()

			manager := cache.NewManager(redisClient)
			total := 0
			for _, path := range args {
				n, err := manager.Purge(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("purge %s: %w", path, err)
				}
				total += n
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d cached responses\n", total)
			return nil
		},
	}
}
