package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newQueryCmd(client *Client) *cobra.Command {
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "query <space-id> <statement-id>",
		Short: "Show a statement's bottleneck diagnosis from the latest report",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := client.Query(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, detail)
			}

			q := detail.Query
			fmt.Fprintf(os.Stdout, "Statement:      %s\n", q.StatementID)
			fmt.Fprintf(os.Stdout, "Bottleneck:     %s (%s)\n", q.Bottleneck, q.SpeedCategory)
			fmt.Fprintf(os.Stdout, "Total duration: %dms\n", q.TotalDurationMs)
			fmt.Fprintf(os.Stdout, "AI overhead:    %.1fs\n", detail.AIOverheadSec)
			fmt.Fprintf(os.Stdout, "Recommendation: %s\n\n", detail.Recommendation)

			rows := make([][]string, 0, len(detail.Timeline))
			for _, phase := range detail.Timeline {
				rows = append(rows, []string{
					phase.Phase,
					fmt.Sprintf("%d", phase.StartMs),
					fmt.Sprintf("%d", phase.DurationMs),
					fmt.Sprintf("%.1f%%", phase.Percentage),
				})
			}
			printTable(os.Stdout, []string{"phase", "start_ms", "duration_ms", "share"}, rows)

			if len(detail.Optimizations) > 0 {
				fmt.Fprintln(os.Stdout)
				rows = rows[:0]
				for _, opt := range detail.Optimizations {
					rows = append(rows, []string{opt.Severity, opt.Category, opt.Title, opt.Recommendation})
				}
				printTable(os.Stdout, []string{"severity", "category", "finding", "recommendation"}, rows)
			}

			if showSQL {
				for _, diag := range detail.Diagnostics {
					fmt.Fprintf(os.Stdout, "\n-- %s: %s\n%s\n", diag.Title, diag.Description, diag.SQL)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSQL, "sql", false, "Also print the suggested diagnostic SQL statements")

	return cmd
}
