package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newRefreshCmd(client *Client) *cobra.Command {
	var windowHours float64

	cmd := &cobra.Command{
		Use:   "refresh <space-id>",
		Short: "Run a fresh audit of a space and store the report",
		Example: `  # Audit the last 24 hours (server default)
  auditctl refresh 01ef1a2b3c4d

  # Audit the last week
  auditctl refresh 01ef1a2b3c4d --window-hours 168`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := client.Refresh(cmd.Context(), args[0], windowHours)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, run)
			}

			printTable(os.Stdout,
				[]string{"run_id", "space_id", "window_hours", "conversations", "queries", "took"},
				[][]string{{
					run.ID,
					run.SpaceID,
					fmt.Sprintf("%g", run.WindowHours),
					fmt.Sprintf("%d", run.ConversationCount),
					fmt.Sprintf("%d", run.QueryCount),
					run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
				}})
			return nil
		},
	}

	cmd.Flags().Float64Var(&windowHours, "window-hours", 0, "Lookback window in hours (0 uses the server default)")

	return cmd
}
