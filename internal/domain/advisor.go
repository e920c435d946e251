package domain

// Severity levels for advisor recommendations.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Optimization is a stateless recommendation record for a classified query.
// Not persisted; regenerated per query.
type Optimization struct {
	Category       string `json:"category"`
	Severity       string `json:"severity"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// TimelinePhase is one phase in a query's execution timeline.
type TimelinePhase struct {
	Phase      string  `json:"phase"`
	StartMs    int64   `json:"start_ms"`
	DurationMs int64   `json:"duration_ms"`
	Percentage float64 `json:"percentage"`
}

// DiagnosticQuery is a copy-pastable SQL statement suggested for
// investigating a classified query's bottleneck.
type DiagnosticQuery struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SQL         string `json:"sql"`
	Category    string `json:"category"` // statistics, performance, data, monitoring
}
