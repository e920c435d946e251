package engine

import (
	"fmt"
	"strings"

	"genie-audit/internal/domain"
)

// Display statuses produced by MapStatus.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusUnknown   = "unknown"
)

// Advisor rule thresholds. A rule can fire even when classification picked a
// different dominant bottleneck, so several recommendations may apply to one
// statement.
const (
	computeWaitRuleMs     = int64(30000)
	computeWaitHighSec    = 60.0
	queueWaitRuleMs       = int64(10000)
	queueWaitHighSec      = 30.0
	compilationRuleMs     = int64(5000)
	compilationHighSec    = 15.0
	largeScanHighGB       = 10.0
	slowExecutionRuleMs   = int64(60000)
	slowExecutionHighSec  = 120.0
	highOverheadSec       = 10.0
	highOverheadSevereSec = 30.0
	selectivityMinRows    = int64(1000000)
	selectivityThreshold  = 0.001
)

// MapStatus maps a warehouse execution status to a display status.
func MapStatus(status string) string {
	switch strings.ToUpper(status) {
	case "FINISHED", "SUCCEEDED":
		return StatusSuccess
	case "FAILED":
		return StatusFailed
	case "CANCELED", "CANCELLED":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// RecommendationFor returns a one-line recommendation summary for a
// bottleneck category.
func RecommendationFor(b domain.Bottleneck) string {
	switch b {
	case domain.BottleneckComputeStartup:
		return "Switch to a serverless warehouse or increase the auto-suspend timeout"
	case domain.BottleneckQueueWait:
		return "Scale up the warehouse, enable auto-scaling, or distribute workloads"
	case domain.BottleneckCompilation:
		return "Simplify query structure, reduce JOINs, or break into smaller CTEs"
	case domain.BottleneckLargeScan:
		return "Add partition filters, cluster on filtered columns, or select only needed columns"
	case domain.BottleneckSlowExecution:
		return "Review the query profile, optimize JOINs, or create materialized views"
	case domain.BottleneckNormal:
		return "Query performing well - continue monitoring"
	default:
		return "Review the query profile for specific optimization opportunities"
	}
}

// Optimizations evaluates the advisor rule table against a classified
// statement and its message-level AI overhead. When no rule fires it emits
// exactly one "performing well" record.
func Optimizations(q *domain.QueryExecution, aiOverheadSec float64) []domain.Optimization {
	bottleneck := q.Bottleneck
	if bottleneck == "" {
		bottleneck = ClassifyBottleneck(
			q.CompilationMs, q.ExecutionMs, q.QueueWaitMs,
			q.ComputeWaitMs, q.TotalDurationMs, q.BytesScanned,
		)
	}

	var out []domain.Optimization

	if bottleneck == domain.BottleneckComputeStartup || q.ComputeWaitMs > computeWaitRuleMs {
		waitSec := float64(nonNegative(q.ComputeWaitMs)) / 1000.0
		out = append(out, domain.Optimization{
			Category:    "infrastructure",
			Severity:    severityAbove(waitSec, computeWaitHighSec),
			Title:       "Compute Startup Delay",
			Description: fmt.Sprintf("Waited %.1fs for compute resources. The warehouse was likely suspended or scaling up.", waitSec),
			Recommendation: "Switch to a serverless warehouse for fast startup, raise the auto-suspend timeout " +
				"during business hours, or keep minimum clusters above zero at peak times.",
		})
	}

	if bottleneck == domain.BottleneckQueueWait || q.QueueWaitMs > queueWaitRuleMs {
		waitSec := float64(nonNegative(q.QueueWaitMs)) / 1000.0
		out = append(out, domain.Optimization{
			Category:    "infrastructure",
			Severity:    severityAbove(waitSec, queueWaitHighSec),
			Title:       "Query Queue Congestion",
			Description: fmt.Sprintf("Query waited %.1fs in queue. The warehouse is at capacity with concurrent queries.", waitSec),
			Recommendation: "Increase warehouse size or enable auto-scaling. For sustained load, split workloads " +
				"across dedicated warehouses and move batch analytics off peak hours.",
		})
	}

	if bottleneck == domain.BottleneckCompilation || q.CompilationMs > compilationRuleMs {
		compileSec := float64(nonNegative(q.CompilationMs)) / 1000.0
		out = append(out, domain.Optimization{
			Category:    "query_design",
			Severity:    severityAbove(compileSec, compilationHighSec),
			Title:       "Complex Query Compilation",
			Description: fmt.Sprintf("Compilation took %.1fs. Query structure is too complex for efficient planning.", compileSec),
			Recommendation: "Break the query into smaller CTEs, reduce the number of JOINs, and replace SELECT * " +
				"with explicit column lists. Pre-aggregating complex metrics into summary tables also helps.",
		})
	}

	if bottleneck == domain.BottleneckLargeScan || q.BytesScanned > largeScanBytes {
		gb := float64(nonNegative(q.BytesScanned)) / float64(1<<30)
		out = append(out, domain.Optimization{
			Category:    "data_design",
			Severity:    severityAbove(gb, largeScanHighGB),
			Title:       fmt.Sprintf("Large Data Scan (%.1f GB)", gb),
			Description: fmt.Sprintf("Query scanned %.2f GB of data, which impacts performance and cost.", gb),
			Recommendation: "Filter on partition columns in the WHERE clause, cluster tables on frequently " +
				"filtered columns, and select only the required columns instead of SELECT *.",
		})
	}

	if bottleneck == domain.BottleneckSlowExecution || q.ExecutionMs > slowExecutionRuleMs {
		execSec := float64(nonNegative(q.ExecutionMs)) / 1000.0
		out = append(out, domain.Optimization{
			Category:    "query_design",
			Severity:    severityAbove(execSec, slowExecutionHighSec),
			Title:       fmt.Sprintf("Slow Query Execution (%.1fs)", execSec),
			Description: fmt.Sprintf("Execution took %.1fs. Query operations (joins, aggregations) are expensive.", execSec),
			Recommendation: "Check the query profile for missing join conditions or Cartesian products, filter " +
				"early in CTEs, keep table statistics fresh, and consider materialized views for repeated aggregations.",
		})
	}

	if aiOverheadSec > highOverheadSec {
		out = append(out, domain.Optimization{
			Category:    "ai_processing",
			Severity:    severityAbove(aiOverheadSec, highOverheadSevereSec),
			Title:       fmt.Sprintf("High AI Processing Time (%.1fs)", aiOverheadSec),
			Description: fmt.Sprintf("The assistant spent %.1fs understanding the question and generating SQL.", aiOverheadSec),
			Recommendation: "Add clear table and column descriptions to the space instructions, provide sample " +
				"questions with their expected queries, and reduce the number of tables exposed to the assistant.",
		})
	}

	if q.RowsScanned > selectivityMinRows && q.RowsReturned > 0 {
		selectivity := float64(q.RowsReturned) / float64(q.RowsScanned)
		if selectivity < selectivityThreshold {
			out = append(out, domain.Optimization{
				Category: "data_design",
				Severity: domain.SeverityLow,
				Title:    "Low Row Selection Efficiency",
				Description: fmt.Sprintf("Only %d rows returned from %d scanned (%.4f%% selectivity).",
					q.RowsReturned, q.RowsScanned, selectivity*100),
				Recommendation: "Add more selective WHERE conditions, filter on clustered columns, and consider " +
					"partitioning the table by commonly filtered columns.",
			})
		}
	}

	if len(out) == 0 {
		out = append(out, domain.Optimization{
			Category:       "performance",
			Severity:       domain.SeverityLow,
			Title:          "Query Performing Well",
			Description:    "This query is executing within expected performance parameters.",
			Recommendation: "Continue monitoring for degradation and keep table statistics up to date.",
		})
	}

	return out
}

// DiagnosticQueries suggests investigation SQL for a classified statement,
// targeted at the warehouse's statement-history table.
func DiagnosticQueries(q *domain.QueryExecution, spaceID string) []domain.DiagnosticQuery {
	var out []domain.DiagnosticQuery

	if q.StatementID != "" {
		out = append(out, domain.DiagnosticQuery{
			Title:       "Query Execution Details",
			Description: "Full execution details for this statement from the warehouse history",
			Category:    "monitoring",
			SQL: fmt.Sprintf(`SELECT statement_id, executed_by, start_time, total_duration_ms,
       compilation_duration_ms, execution_duration_ms,
       waiting_for_compute_duration_ms, waiting_at_capacity_duration_ms,
       read_bytes, execution_status, statement_text
FROM system.query.history
WHERE statement_id = '%s'`, q.StatementID),
		})
	}

	switch q.Bottleneck {
	case domain.BottleneckComputeStartup:
		out = append(out, domain.DiagnosticQuery{
			Title:       "Warehouse Cold Start Analysis",
			Description: "How often this warehouse experiences cold starts",
			Category:    "performance",
			SQL: fmt.Sprintf(`SELECT warehouse_id, DATE(start_time) AS query_date, COUNT(*) AS total_queries,
       SUM(CASE WHEN waiting_for_compute_duration_ms > 10000 THEN 1 ELSE 0 END) AS cold_starts,
       ROUND(AVG(waiting_for_compute_duration_ms) / 1000.0, 1) AS avg_startup_sec
FROM system.query.history
WHERE query_source.space_id = '%s'
  AND start_time >= current_timestamp() - INTERVAL 7 DAY
GROUP BY warehouse_id, DATE(start_time)
ORDER BY query_date DESC`, spaceID),
		})
	case domain.BottleneckQueueWait:
		out = append(out, domain.DiagnosticQuery{
			Title:       "Peak Concurrency Analysis",
			Description: "Peak concurrent query periods causing queue wait",
			Category:    "performance",
			SQL: fmt.Sprintf(`SELECT DATE_TRUNC('hour', start_time) AS hour, COUNT(*) AS total_queries,
       ROUND(AVG(waiting_at_capacity_duration_ms) / 1000.0, 1) AS avg_queue_sec,
       SUM(CASE WHEN waiting_at_capacity_duration_ms > 5000 THEN 1 ELSE 0 END) AS queued_queries
FROM system.query.history
WHERE query_source.space_id = '%s'
  AND start_time >= current_timestamp() - INTERVAL 7 DAY
GROUP BY DATE_TRUNC('hour', start_time)
ORDER BY avg_queue_sec DESC
LIMIT 20`, spaceID),
		})
	case domain.BottleneckCompilation:
		out = append(out, domain.DiagnosticQuery{
			Title:       "High Compilation Time Queries",
			Description: "Other statements with high compilation times for pattern analysis",
			Category:    "performance",
			SQL: fmt.Sprintf(`SELECT LEFT(statement_text, 300) AS query_preview, COUNT(*) AS occurrences,
       ROUND(AVG(compilation_duration_ms) / 1000.0, 1) AS avg_compile_sec
FROM system.query.history
WHERE query_source.space_id = '%s'
  AND start_time >= current_timestamp() - INTERVAL 7 DAY
  AND compilation_duration_ms > 2000
GROUP BY LEFT(statement_text, 300)
ORDER BY avg_compile_sec DESC
LIMIT 10`, spaceID),
		})
	case domain.BottleneckLargeScan:
		out = append(out, domain.DiagnosticQuery{
			Title:       "Table Scan Analysis",
			Description: "Data volumes scanned by this space's statements",
			Category:    "data",
			SQL: fmt.Sprintf(`SELECT DATE(start_time) AS query_date, COUNT(*) AS queries,
       ROUND(SUM(read_bytes) / (1024*1024*1024), 1) AS total_gb_scanned,
       ROUND(MAX(read_bytes) / (1024*1024*1024), 2) AS max_gb_scanned
FROM system.query.history
WHERE query_source.space_id = '%s'
  AND start_time >= current_timestamp() - INTERVAL 7 DAY
GROUP BY DATE(start_time)
ORDER BY query_date DESC`, spaceID),
		})
	case domain.BottleneckSlowExecution:
		out = append(out, domain.DiagnosticQuery{
			Title:       "Similar Slow Queries",
			Description: "Similar statements to identify optimization patterns",
			Category:    "performance",
			SQL: fmt.Sprintf(`SELECT LEFT(statement_text, 300) AS query_pattern, COUNT(*) AS occurrences,
       ROUND(AVG(execution_duration_ms) / 1000.0, 1) AS avg_exec_sec,
       ROUND(MAX(execution_duration_ms) / 1000.0, 1) AS max_exec_sec
FROM system.query.history
WHERE query_source.space_id = '%s'
  AND start_time >= current_timestamp() - INTERVAL 7 DAY
  AND execution_duration_ms > 10000
GROUP BY LEFT(statement_text, 300)
ORDER BY occurrences DESC
LIMIT 10`, spaceID),
		})
	}

	out = append(out, domain.DiagnosticQuery{
		Title:       "Space Performance Summary",
		Description: "Overall performance metrics for this space",
		Category:    "monitoring",
		SQL: fmt.Sprintf(`SELECT COUNT(*) AS total_queries,
       ROUND(AVG(total_duration_ms) / 1000.0, 1) AS avg_duration_sec,
       SUM(CASE WHEN total_duration_ms > 10000 THEN 1 ELSE 0 END) AS slow_queries,
       ROUND(100.0 * SUM(CASE WHEN execution_status = 'FINISHED' THEN 1 ELSE 0 END) / COUNT(*), 1) AS success_pct,
       COUNT(DISTINCT executed_by) AS unique_users
FROM system.query.history
WHERE query_source.space_id = '%s'
  AND start_time >= current_timestamp() - INTERVAL 7 DAY`, spaceID),
	})

	return out
}

func severityAbove(value, highThreshold float64) string {
	if value > highThreshold {
		return domain.SeverityHigh
	}
	return domain.SeverityMedium
}
