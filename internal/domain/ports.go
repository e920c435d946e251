package domain

import "context"

// QueryHistorySource fetches SQL statement execution records from the
// warehouse history collaborator. Empty results are a valid state, not an
// error.
type QueryHistorySource interface {
	// FetchQueries returns all statement executions for the space within the
	// window.
	FetchQueries(ctx context.Context, spaceID string, window Window) ([]QueryExecution, error)
	// FetchQueriesByIDs performs bulk point lookups. Implementations chunk
	// the IDs to respect upstream request-size limits and union the results.
	FetchQueriesByIDs(ctx context.Context, statementIDs []string) ([]QueryExecution, error)
}

// ConversationSource fetches conversations and messages from the assistant
// API collaborator.
type ConversationSource interface {
	FetchConversations(ctx context.Context, spaceID string, maxCount int) ([]Conversation, error)
	FetchMessages(ctx context.Context, spaceID, conversationID string) ([]Message, error)
}

// MessageSourceProvider returns audit-log-derived fallback data keyed by
// message ID: AI overhead, originating user, and message source, computed by
// the upstream collaborator from raw event logs.
type MessageSourceProvider interface {
	FetchMessageSources(ctx context.Context, spaceID string, window Window) (map[string]SourceInfo, error)
}

// RunRepository persists and retrieves audit run snapshots.
type RunRepository interface {
	SaveRun(ctx context.Context, run *AuditRun) error
	GetRun(ctx context.Context, id string) (*AuditRun, error)
	LatestRun(ctx context.Context, spaceID string) (*AuditRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]AuditRun, int64, error)
}
