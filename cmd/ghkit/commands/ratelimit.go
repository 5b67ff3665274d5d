package commands

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Sternrassler/ghkit/pkg/ratelimit"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRateLimitCommand creates the ratelimit command
func NewRateLimitCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ratelimit",
		Aliases: []string{"rate-limit", "limits"},
		Short:   "Show the current rate limits",
		Long:    "Show the limit, remaining budget and reset time of every GitHub rate limit resource",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			states, err := c.RateLimits(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch rate limits: %w", err)
			}

			out := cmd.OutOrStdout()
			if handled, err := writeStructured(out, viper.GetString("output"), states); handled {
				return err
			}
			return renderRateLimits(out, states)
		},
	}
}

func renderRateLimits(w io.Writer, states []ratelimit.RateLimitState) error {
	if len(states) == 0 {
		fmt.Fprintln(w, "No rate limits reported")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Resource", "Limit", "Remaining", "Used", "Resets", "Status")

	for _, s := range states {
		resets := "-"
		if !s.ResetAt.IsZero() {
			resets = s.ResetAt.Local().Format(time.DateTime)
		}

		status := "ok"
		switch {
		case s.Exhausted():
			status = "exhausted"
		case s.NeedsWarning():
			status = "low"
		}

		_ = table.Append([]string{
			s.Resource,
			strconv.Itoa(s.Limit),
			strconv.Itoa(s.Remaining),
			strconv.Itoa(s.Used),
			resets,
			status,
		})
	}

	return table.Render()
}
