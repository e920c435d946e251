package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCmd(client *Client) *cobra.Command {
	var (
		spaceID    string
		maxResults int
		pageToken  string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored audit runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := client.Runs(cmd.Context(), spaceID, maxResults, pageToken)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, list)
			}

			columns := []string{"run_id", "space_id", "window_hours", "conversations", "queries", "started_at"}
			rows := make([][]string, 0, len(list.Data))
			for _, run := range list.Data {
				rows = append(rows, []string{
					run.ID,
					run.SpaceID,
					fmt.Sprintf("%g", run.WindowHours),
					fmt.Sprintf("%d", run.ConversationCount),
					fmt.Sprintf("%d", run.QueryCount),
					run.StartedAt.Format(time.RFC3339),
				})
			}
			printTable(os.Stdout, columns, rows)
			if list.NextPageToken != "" {
				fmt.Fprintf(os.Stdout, "\nnext page: --page-token %s\n", list.NextPageToken)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&spaceID, "space", "", "Only list runs for this space")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Page size (server default when 0)")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Page token from a previous listing")

	cmd.AddCommand(newRunsGetCmd(client))

	return cmd
}

func newRunsGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <run-id>",
		Short: "Fetch one stored run snapshot, report included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := client.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			// The full report only makes sense as JSON.
			return printJSON(os.Stdout, run)
		},
	}
}
