package engine

import "genie-audit/internal/domain"

// buildMessageReport folds a message's resolved statements and overhead into
// its derived metrics.
func buildMessageReport(msg *domain.Message, queries []domain.QueryExecution, overheadSec float64, source string, t Tuning) domain.MessageReport {
	var totalMs int64
	hasSlowQuery := false
	for i := range queries {
		totalMs += nonNegative(queries[i].TotalDurationMs)
		if queries[i].TotalDurationMs >= t.SlowQueryMs {
			hasSlowQuery = true
		}
	}

	hasSlowAI := overheadSec > t.SlowAISec
	if source == "" {
		source = domain.SourceUnknown
	}

	return domain.MessageReport{
		MessageID:           msg.MessageID,
		Content:             msg.Content,
		CreatedTimestampMs:  msg.CreatedTimestampMs,
		MessageSource:       source,
		Queries:             queries,
		QueryCount:          len(queries),
		TotalDurationMs:     totalMs,
		AIOverheadSec:       overheadSec,
		TotalResponseSec:    overheadSec + float64(totalMs)/1000.0,
		HasSlowAI:           hasSlowAI,
		HasSlowQuery:        hasSlowQuery,
		HasPerformanceIssue: hasSlowAI || hasSlowQuery,
	}
}

// buildConversationReport rolls message reports up into the conversation
// aggregate. All aggregates are recomputed from scratch; a conversation with
// no statements reports a 100% success rate (optimistic default preserved
// from the upstream system, deliberately not "unknown").
func buildConversationReport(conv *domain.Conversation, messages []domain.MessageReport) domain.ConversationReport {
	report := domain.ConversationReport{
		ConversationID: conv.ConversationID,
		Title:          conv.Title,
		CreatedTime:    conv.CreatedTime,
		UserEmail:      conv.UserEmail,
		Messages:       messages,
		SuccessRate:    100.0,
	}

	var (
		totalDurationMs int64
		successful      int
		responseTimes   []float64
	)

	for i := range messages {
		m := &messages[i]

		for j := range m.Queries {
			q := &m.Queries[j]
			report.TotalQueries++
			totalDurationMs += nonNegative(q.TotalDurationMs)
			if q.TotalDurationMs > report.SlowestQueryMs {
				report.SlowestQueryMs = q.TotalDurationMs
			}
			if MapStatus(q.ExecutionStatus) == StatusSuccess {
				successful++
			}
		}

		report.TotalAIOverheadSec += m.AIOverheadSec
		if m.HasSlowAI {
			report.SlowAICount++
		}
		if m.HasSlowQuery {
			report.SlowQueryCount++
		}

		// Zero-response messages carry no timing signal; they are excluded
		// from the distribution rather than dragging the average to zero.
		if m.TotalResponseSec > 0 {
			responseTimes = append(responseTimes, m.TotalResponseSec)
		}
	}

	if report.TotalQueries > 0 {
		report.AvgDurationMs = float64(totalDurationMs) / float64(report.TotalQueries)
		report.SuccessRate = float64(successful) / float64(report.TotalQueries) * 100.0
	}

	if len(responseTimes) > 0 {
		sum := 0.0
		report.FastestResponseSec = responseTimes[0]
		report.SlowestResponseSec = responseTimes[0]
		for _, rt := range responseTimes {
			sum += rt
			if rt < report.FastestResponseSec {
				report.FastestResponseSec = rt
			}
			if rt > report.SlowestResponseSec {
				report.SlowestResponseSec = rt
			}
		}
		report.AvgResponseSec = sum / float64(len(responseTimes))
	}

	if len(messages) > 0 {
		report.ConversationSource = messages[0].MessageSource
	} else {
		report.ConversationSource = domain.SourceUnknown
	}

	report.HasPerformanceIssues = report.SlowAICount > 0 || report.SlowQueryCount > 0

	return report
}
