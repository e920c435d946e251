package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genie-audit/internal/domain"
	"genie-audit/internal/engine"
	"genie-audit/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(history *testutil.MockQueryHistorySource, conversations *testutil.MockConversationSource,
	sources *testutil.MockMessageSourceProvider, runs *testutil.MockRunRepo) *AuditService {
	logger := discardLogger()
	eng := engine.New(engine.DefaultTuning(), logger)
	return NewAuditService(history, conversations, sources, runs, eng, 24, 100, logger)
}

func TestRunAudit(t *testing.T) {
	base := time.Now().UTC().Add(-10 * time.Minute)

	history := &testutil.MockQueryHistorySource{
		FetchQueriesFn: func(ctx context.Context, spaceID string, window domain.Window) ([]domain.QueryExecution, error) {
			return []domain.QueryExecution{{
				StatementID:     "s1",
				StartTime:       base.Add(5 * time.Second),
				TotalDurationMs: 3000,
				ExecutedBy:      "alice@example.com",
				ExecutionStatus: "FINISHED",
			}}, nil
		},
		FetchQueriesByIDsFn: func(ctx context.Context, statementIDs []string) ([]domain.QueryExecution, error) {
			require.Equal(t, []string{"s-ref"}, statementIDs)
			return []domain.QueryExecution{{
				StatementID:     "s-ref",
				StartTime:       base.Add(-2 * time.Hour),
				TotalDurationMs: 8000,
				ExecutionStatus: "FINISHED",
			}}, nil
		},
	}
	conversations := &testutil.MockConversationSource{
		FetchConversationsFn: func(ctx context.Context, spaceID string, maxCount int) ([]domain.Conversation, error) {
			assert.Equal(t, 100, maxCount)
			return []domain.Conversation{
				{ConversationID: "conv-1", UserEmail: "alice@example.com"},
				{ConversationID: "conv-2", UserEmail: "bob@example.com"},
			}, nil
		},
		FetchMessagesFn: func(ctx context.Context, spaceID, conversationID string) ([]domain.Message, error) {
			switch conversationID {
			case "conv-1":
				return []domain.Message{{
					MessageID:          "m1",
					ConversationID:     "conv-1",
					Content:            "revenue by region",
					CreatedTimestampMs: base.UnixMilli(),
				}}, nil
			default:
				return []domain.Message{{
					MessageID:      "m2",
					ConversationID: "conv-2",
					Content:        "old question",
					Attachments:    []domain.Attachment{{Type: "query", StatementID: "s-ref"}},
				}}, nil
			}
		},
	}
	sources := &testutil.MockMessageSourceProvider{}
	runs := &testutil.MockRunRepo{}

	svc := newTestService(history, conversations, sources, runs)

	run, err := svc.RunAudit(context.Background(), "space-1", 0)
	require.NoError(t, err)

	assert.Equal(t, "space-1", run.SpaceID)
	assert.InDelta(t, 24.0, run.WindowHours, 0.001)
	assert.Equal(t, 2, run.ConversationCount)
	assert.Equal(t, 2, run.QueryCount, "pool statement plus backfilled reference")
	require.NotNil(t, run.Report)
	require.Len(t, runs.Runs, 1, "snapshot persisted")

	// The direct reference outside the window was fetched and assigned.
	conv2 := run.Report.Conversations[1]
	require.Len(t, conv2.Messages, 1)
	require.Len(t, conv2.Messages[0].Queries, 1)
	assert.Equal(t, "s-ref", conv2.Messages[0].Queries[0].StatementID)
	assert.NotEmpty(t, conv2.Messages[0].Queries[0].Bottleneck, "assigned statements are classified")
}

func TestRunAudit_Validation(t *testing.T) {
	svc := newTestService(&testutil.MockQueryHistorySource{}, &testutil.MockConversationSource{},
		&testutil.MockMessageSourceProvider{}, &testutil.MockRunRepo{})

	_, err := svc.RunAudit(context.Background(), "", 0)
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestRunAudit_ConcurrentRunsConflict(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	conversations := &testutil.MockConversationSource{
		FetchConversationsFn: func(ctx context.Context, spaceID string, maxCount int) ([]domain.Conversation, error) {
			close(started)
			<-release
			return nil, nil
		},
	}
	svc := newTestService(&testutil.MockQueryHistorySource{}, conversations,
		&testutil.MockMessageSourceProvider{}, &testutil.MockRunRepo{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.RunAudit(context.Background(), "space-1", 0)
		assert.NoError(t, err)
	}()

	<-started
	_, err := svc.RunAudit(context.Background(), "space-1", 0)
	var cErr *domain.ConflictError
	assert.ErrorAs(t, err, &cErr)

	close(release)
	wg.Wait()
}

func TestRunAudit_SourceLookupFailureIsNonFatal(t *testing.T) {
	sources := &testutil.MockMessageSourceProvider{
		FetchMessageSourcesFn: func(ctx context.Context, spaceID string, window domain.Window) (map[string]domain.SourceInfo, error) {
			return nil, assert.AnError
		},
	}
	runs := &testutil.MockRunRepo{}
	svc := newTestService(&testutil.MockQueryHistorySource{}, &testutil.MockConversationSource{}, sources, runs)

	run, err := svc.RunAudit(context.Background(), "space-1", 0)
	require.NoError(t, err)
	assert.NotNil(t, run.Report)
}

func TestRunAudit_HistoryFailureAborts(t *testing.T) {
	history := &testutil.MockQueryHistorySource{
		FetchQueriesFn: func(ctx context.Context, spaceID string, window domain.Window) ([]domain.QueryExecution, error) {
			return nil, assert.AnError
		},
	}
	runs := &testutil.MockRunRepo{}
	svc := newTestService(history, &testutil.MockConversationSource{}, &testutil.MockMessageSourceProvider{}, runs)

	_, err := svc.RunAudit(context.Background(), "space-1", 0)
	require.Error(t, err)
	assert.Empty(t, runs.Runs, "failed run not persisted")
}

func TestLatestReportAndLookups(t *testing.T) {
	report := &domain.SpaceReport{
		SpaceID: "space-1",
		Conversations: []domain.ConversationReport{{
			ConversationID: "conv-1",
			Messages: []domain.MessageReport{{
				MessageID:     "m1",
				AIOverheadSec: 3.5,
				Queries: []domain.QueryExecution{{
					StatementID:     "s1",
					TotalDurationMs: 12000,
					ExecutionMs:     11000,
					Bottleneck:      domain.BottleneckSlowExecution,
				}},
			}},
		}},
	}
	runs := &testutil.MockRunRepo{}
	require.NoError(t, runs.SaveRun(context.Background(), &domain.AuditRun{SpaceID: "space-1", Report: report}))

	svc := newTestService(&testutil.MockQueryHistorySource{}, &testutil.MockConversationSource{},
		&testutil.MockMessageSourceProvider{}, runs)
	ctx := context.Background()

	t.Run("latest_report", func(t *testing.T) {
		got, err := svc.LatestReport(ctx, "space-1")
		require.NoError(t, err)
		assert.Equal(t, "space-1", got.SpaceID)

		_, err = svc.LatestReport(ctx, "space-9")
		var nfErr *domain.NotFoundError
		assert.ErrorAs(t, err, &nfErr)
	})

	t.Run("conversation_report", func(t *testing.T) {
		got, err := svc.ConversationReport(ctx, "space-1", "conv-1")
		require.NoError(t, err)
		assert.Equal(t, "conv-1", got.ConversationID)

		_, err = svc.ConversationReport(ctx, "space-1", "conv-9")
		var nfErr *domain.NotFoundError
		assert.ErrorAs(t, err, &nfErr)
	})

	t.Run("query_detail", func(t *testing.T) {
		got, err := svc.QueryDetailReport(ctx, "space-1", "s1")
		require.NoError(t, err)
		assert.Equal(t, "s1", got.Query.StatementID)
		assert.InDelta(t, 3.5, got.AIOverheadSec, 0.001)
		assert.Len(t, got.Timeline, 5)
		assert.NotEmpty(t, got.Optimizations)
		assert.NotEmpty(t, got.Diagnostics)
		assert.NotEmpty(t, got.Recommendation)

		_, err = svc.QueryDetailReport(ctx, "space-1", "s-missing")
		var nfErr *domain.NotFoundError
		assert.ErrorAs(t, err, &nfErr)
	})
}
