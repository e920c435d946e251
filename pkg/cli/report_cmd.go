package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newReportCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <space-id>",
		Short: "Show the latest stored report for a space",
		Long: `Shows one row per conversation from the latest stored audit of the space.
Use --output json for the full report including per-message detail.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := client.Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, report)
			}

			columns := []string{"conversation_id", "user", "source", "queries", "success_rate", "avg_response_sec", "issues"}
			rows := make([][]string, 0, len(report.Conversations))
			for _, conv := range report.Conversations {
				issues := "-"
				if conv.HasPerformanceIssues {
					issues = fmt.Sprintf("%d slow AI, %d slow queries", conv.SlowAICount, conv.SlowQueryCount)
				}
				rows = append(rows, []string{
					conv.ConversationID,
					conv.UserEmail,
					conv.ConversationSource,
					fmt.Sprintf("%d", conv.TotalQueries),
					fmt.Sprintf("%.1f%%", conv.SuccessRate),
					fmt.Sprintf("%.1f", conv.AvgResponseSec),
					issues,
				})
			}
			printTable(os.Stdout, columns, rows)
			return nil
		},
	}
	return cmd
}
