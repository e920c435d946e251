package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConversationCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversation <space-id> <conversation-id>",
		Short: "Show one conversation from the latest report",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := client.Conversation(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, conv)
			}

			columns := []string{"message_id", "source", "queries", "query_ms", "ai_overhead_sec", "response_sec", "slow"}
			rows := make([][]string, 0, len(conv.Messages))
			for _, msg := range conv.Messages {
				slow := "-"
				switch {
				case msg.HasSlowAI && msg.HasSlowQuery:
					slow = "ai+query"
				case msg.HasSlowAI:
					slow = "ai"
				case msg.HasSlowQuery:
					slow = "query"
				}
				rows = append(rows, []string{
					msg.MessageID,
					msg.MessageSource,
					fmt.Sprintf("%d", msg.QueryCount),
					fmt.Sprintf("%d", msg.TotalDurationMs),
					fmt.Sprintf("%.1f", msg.AIOverheadSec),
					fmt.Sprintf("%.1f", msg.TotalResponseSec),
					slow,
				})
			}
			printTable(os.Stdout, columns, rows)
			return nil
		},
	}
	return cmd
}
