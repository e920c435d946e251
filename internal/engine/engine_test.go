package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genie-audit/internal/domain"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return New(DefaultTuning(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBuildReport(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	window := domain.WindowEnding(base.Add(1*time.Hour), 24)

	input := func() Input {
		return Input{
			SpaceID: "space-1",
			Window:  window,
			Conversations: []domain.Conversation{
				{ConversationID: "conv-1", Title: "Revenue", UserEmail: "alice@example.com"},
				{ConversationID: "conv-2", Title: "Churn", UserEmail: "bob@example.com"},
			},
			MessagesByConversation: map[string][]domain.Message{
				"conv-1": {
					{
						MessageID:          "m1",
						ConversationID:     "conv-1",
						Content:            "total revenue last month",
						CreatedTimestampMs: base.UnixMilli(),
						Attachments:        []domain.Attachment{{Type: "query", StatementID: "s-direct"}},
					},
					{
						// Empty system turn with no statements; must be pruned.
						MessageID:          "m2",
						ConversationID:     "conv-1",
						CreatedTimestampMs: base.Add(1 * time.Minute).UnixMilli(),
					},
				},
				"conv-2": {
					{
						MessageID:          "m3",
						ConversationID:     "conv-2",
						Content:            "churn rate by region",
						CreatedTimestampMs: base.Add(5 * time.Minute).UnixMilli(),
					},
				},
			},
			Pool: []domain.QueryExecution{
				{
					StatementID:     "s-direct",
					StartTime:       base.Add(8 * time.Second),
					TotalDurationMs: 42000,
					ComputeWaitMs:   30000,
					ExecutionMs:     9000,
					ExecutedBy:      "alice@example.com",
					ExecutionStatus: "FINISHED",
				},
				{
					StatementID:     "s-bob",
					StartTime:       base.Add(5*time.Minute + 12*time.Second),
					TotalDurationMs: 4000,
					ExecutionMs:     3500,
					ExecutedBy:      "bob@example.com",
					ExecutionStatus: "FINISHED",
				},
			},
			Sources: map[string]domain.SourceInfo{
				"m3": {AIOverheadSec: 2.5, UserEmail: "bob@example.com", Source: domain.SourceAPI},
			},
		}
	}

	t.Run("full_run", func(t *testing.T) {
		report := testEngine(t).BuildReport(input())

		require.Len(t, report.Conversations, 2)
		assert.Equal(t, "space-1", report.SpaceID)
		assert.Equal(t, window.Start, report.WindowStart)
		assert.False(t, report.GeneratedAt.IsZero())

		conv1 := report.Conversations[0]
		require.Len(t, conv1.Messages, 1, "empty message must be pruned")
		m1 := conv1.Messages[0]
		require.Len(t, m1.Queries, 1)
		assert.Equal(t, "s-direct", m1.Queries[0].StatementID)
		assert.Equal(t, domain.BottleneckComputeStartup, m1.Queries[0].Bottleneck)
		assert.Equal(t, domain.SpeedCritical, m1.Queries[0].SpeedCategory)
		assert.InDelta(t, 8.0, m1.AIOverheadSec, 0.001)
		assert.Equal(t, domain.SourceUnknown, m1.MessageSource)
		assert.True(t, conv1.HasPerformanceIssues)

		conv2 := report.Conversations[1]
		require.Len(t, conv2.Messages, 1)
		m3 := conv2.Messages[0]
		require.Len(t, m3.Queries, 1)
		assert.Equal(t, "s-bob", m3.Queries[0].StatementID)
		assert.InDelta(t, 12.0, m3.AIOverheadSec, 0.001)
		assert.Equal(t, domain.SourceAPI, m3.MessageSource)
		assert.Equal(t, domain.SourceAPI, conv2.ConversationSource)
		assert.InDelta(t, 100.0, conv2.SuccessRate, 0.001)
	})

	t.Run("statement_assigned_at_most_once_across_conversations", func(t *testing.T) {
		in := input()
		// Give both users' messages a shot at the same statement.
		in.Pool = []domain.QueryExecution{
			{
				StatementID:     "s-shared",
				StartTime:       base.Add(10 * time.Second),
				TotalDurationMs: 3000,
				ExecutedBy:      "alice@example.com",
				ExecutionStatus: "FINISHED",
			},
		}
		in.MessagesByConversation = map[string][]domain.Message{
			"conv-1": {{MessageID: "m1", ConversationID: "conv-1", Content: "q", CreatedTimestampMs: base.UnixMilli()}},
			"conv-2": {{MessageID: "m2", ConversationID: "conv-2", Content: "q", CreatedTimestampMs: base.UnixMilli()}},
		}
		in.Sources = map[string]domain.SourceInfo{
			"m2": {UserEmail: "alice@example.com"},
		}
		in.Conversations[1].UserEmail = "alice@example.com"

		report := testEngine(t).BuildReport(in)

		total := 0
		for _, c := range report.Conversations {
			for _, m := range c.Messages {
				total += m.QueryCount
			}
		}
		assert.Equal(t, 1, total)
		// First conversation in input order wins the claim.
		assert.Equal(t, 1, report.Conversations[0].TotalQueries)
	})

	t.Run("deterministic_across_runs", func(t *testing.T) {
		e := testEngine(t)
		first := e.BuildReport(input())
		second := e.BuildReport(input())

		require.Len(t, second.Conversations, len(first.Conversations))
		for i := range first.Conversations {
			assert.Equal(t, first.Conversations[i].TotalQueries, second.Conversations[i].TotalQueries)
			assert.InDelta(t, first.Conversations[i].TotalAIOverheadSec, second.Conversations[i].TotalAIOverheadSec, 0.001)
		}
	})

	t.Run("empty_space", func(t *testing.T) {
		report := testEngine(t).BuildReport(Input{SpaceID: "space-1", Window: window})
		assert.Empty(t, report.Conversations)
	})
}
