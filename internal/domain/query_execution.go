package domain

import "time"

// Bottleneck identifies the single dominant cause of a query's latency.
type Bottleneck string

const (
	BottleneckComputeStartup Bottleneck = "COMPUTE_STARTUP"
	BottleneckQueueWait      Bottleneck = "QUEUE_WAIT"
	BottleneckCompilation    Bottleneck = "COMPILATION"
	BottleneckLargeScan      Bottleneck = "LARGE_SCAN"
	BottleneckSlowExecution  Bottleneck = "SLOW_EXECUTION"
	BottleneckNormal         Bottleneck = "NORMAL"
)

// SpeedCategory is an absolute-duration severity label, independent of the
// bottleneck cause.
type SpeedCategory string

const (
	SpeedFast     SpeedCategory = "FAST"
	SpeedModerate SpeedCategory = "MODERATE"
	SpeedSlow     SpeedCategory = "SLOW"
	SpeedCritical SpeedCategory = "CRITICAL"
)

// QueryExecution is one completed (or failed) SQL statement from the
// warehouse statement history. Immutable after creation; the engine only
// reads it. Sub-durations need not sum exactly to TotalDurationMs.
type QueryExecution struct {
	StatementID     string    `json:"statement_id"`
	QueryText       string    `json:"query_text,omitempty"`
	StartTime       time.Time `json:"start_time"`
	TotalDurationMs int64     `json:"total_duration_ms"`
	CompilationMs   int64     `json:"compilation_ms"`
	ExecutionMs     int64     `json:"execution_ms"`
	QueueWaitMs     int64     `json:"queue_wait_ms"`
	ComputeWaitMs   int64     `json:"compute_wait_ms"`
	ResultFetchMs   int64     `json:"result_fetch_ms"`
	BytesScanned    int64     `json:"bytes_scanned"`
	RowsScanned     int64     `json:"rows_scanned"`
	RowsReturned    int64     `json:"rows_returned"`
	ExecutedBy      string    `json:"executed_by,omitempty"`
	// ConversationID is set only when the execution platform stamps the
	// statement with the conversation that triggered it.
	ConversationID  string `json:"conversation_id,omitempty"`
	ExecutionStatus string `json:"execution_status,omitempty"`

	// Derived labels, computed by the engine rather than fetched.
	Bottleneck    Bottleneck    `json:"bottleneck,omitempty"`
	SpeedCategory SpeedCategory `json:"speed_category,omitempty"`
}

// Window is a closed time interval used for bulk history fetches.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowEnding returns a window covering the given number of hours up to end.
func WindowEnding(end time.Time, hours float64) Window {
	return Window{
		Start: end.Add(-time.Duration(hours * float64(time.Hour))),
		End:   end,
	}
}

// RunFilter holds filter parameters for listing stored audit runs.
type RunFilter struct {
	SpaceID *string
	Page    PageRequest
}
