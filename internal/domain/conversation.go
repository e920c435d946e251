package domain

import "time"

// MessageSource categorizes how a conversation turn was initiated.
// Audit-log instrumentation can tell API-originated turns from UI-originated
// ones; turns with no audit trail stay unknown.
const (
	SourceAPI     = "API"
	SourceSpace   = "Space"
	SourceUnknown = "Unknown"
)

// Attachment is a structured element of a message. When the assistant
// generated SQL for the turn, the attachment carries the statement ID and/or
// a (possibly truncated) copy of the SQL text, forming a direct and
// authoritative link to a QueryExecution.
type Attachment struct {
	Type        string `json:"type,omitempty"`
	StatementID string `json:"statement_id,omitempty"`
	SQLContent  string `json:"sql_content,omitempty"`
}

// Message is one turn in a conversation, as fetched from the assistant API.
type Message struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content,omitempty"`
	Status         string `json:"status,omitempty"`
	// CreatedTimestampMs is the epoch-millisecond origination time. Zero when
	// the platform did not record one.
	CreatedTimestampMs int64        `json:"created_timestamp_ms,omitempty"`
	Attachments        []Attachment `json:"attachments,omitempty"`
}

// CreatedTime returns the origination time, or the zero time when absent.
func (m *Message) CreatedTime() time.Time {
	if m.CreatedTimestampMs <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.CreatedTimestampMs)
}

// Conversation is the metadata of an ordered group of messages.
type Conversation struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title,omitempty"`
	CreatedTime    string `json:"created_time,omitempty"`
	UserEmail      string `json:"user_email,omitempty"`
}

// SourceInfo is audit-log-derived fallback data for a single message,
// produced by the upstream collaborator from raw event logs.
type SourceInfo struct {
	AIOverheadSec float64 `json:"ai_overhead_sec"`
	UserEmail     string  `json:"user_email,omitempty"`
	Source        string  `json:"source,omitempty"`
	TimestampMs   int64   `json:"timestamp_ms,omitempty"`
}

// MessageReport is one message with its resolved queries and derived metrics.
type MessageReport struct {
	MessageID          string           `json:"message_id"`
	Content            string           `json:"content,omitempty"`
	CreatedTimestampMs int64            `json:"created_timestamp_ms,omitempty"`
	MessageSource      string           `json:"message_source"`
	Queries            []QueryExecution `json:"queries,omitempty"`

	QueryCount          int     `json:"query_count"`
	TotalDurationMs     int64   `json:"total_duration_ms"`
	AIOverheadSec       float64 `json:"ai_overhead_sec"`
	TotalResponseSec    float64 `json:"total_response_sec"`
	HasSlowAI           bool    `json:"has_slow_ai"`
	HasSlowQuery        bool    `json:"has_slow_query"`
	HasPerformanceIssue bool    `json:"has_performance_issue"`
}

// ConversationReport is a conversation with per-message reports and
// aggregates rolled up from them. Aggregates are recomputed fully on every
// audit run; nothing here is mutated incrementally.
type ConversationReport struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title,omitempty"`
	CreatedTime    string `json:"created_time,omitempty"`
	UserEmail      string `json:"user_email,omitempty"`
	// ConversationSource is inherited from the first message's source.
	ConversationSource string          `json:"conversation_source"`
	Messages           []MessageReport `json:"messages"`

	TotalQueries         int     `json:"total_queries"`
	AvgDurationMs        float64 `json:"avg_duration_ms"`
	SlowestQueryMs       int64   `json:"slowest_query_ms"`
	SuccessRate          float64 `json:"success_rate"`
	TotalAIOverheadSec   float64 `json:"total_ai_overhead_sec"`
	AvgResponseSec       float64 `json:"avg_response_sec"`
	FastestResponseSec   float64 `json:"fastest_response_sec"`
	SlowestResponseSec   float64 `json:"slowest_response_sec"`
	SlowAICount          int     `json:"slow_ai_count"`
	SlowQueryCount       int     `json:"slow_query_count"`
	HasPerformanceIssues bool    `json:"has_performance_issues"`
}

// SpaceReport is the full output of one audit run over a space.
type SpaceReport struct {
	SpaceID       string               `json:"space_id"`
	WindowStart   time.Time            `json:"window_start"`
	WindowEnd     time.Time            `json:"window_end"`
	GeneratedAt   time.Time            `json:"generated_at"`
	Conversations []ConversationReport `json:"conversations"`
}

// AuditRun records one stored execution of the engine over a space.
type AuditRun struct {
	ID                string       `json:"id"`
	SpaceID           string       `json:"space_id"`
	WindowHours       float64      `json:"window_hours"`
	StartedAt         time.Time    `json:"started_at"`
	FinishedAt        time.Time    `json:"finished_at"`
	ConversationCount int          `json:"conversation_count"`
	QueryCount        int          `json:"query_count"`
	Report            *SpaceReport `json:"report,omitempty"`
}
