package engine

import (
	"time"

	"genie-audit/internal/domain"
)

// EstimateOverhead computes the AI think-time for a message: the gap between
// the message's origination and the start of the first causally linked
// statement.
//
// The origination timestamp, direct statement linkage, and audit-derived
// overhead are populated by three independent, partially overlapping
// instrumentation paths, so the estimate falls through a layered chain and
// the first successful method wins:
//
//  1. minimum strictly positive gap to an assigned statement,
//  2. earliest space-wide statement starting within the search window after
//     the message (no causal link verified, but better than nothing),
//  3. the audit-log-derived value supplied by the upstream collaborator,
//  4. zero.
func EstimateOverhead(
	msg *domain.Message,
	assigned []domain.QueryExecution,
	pool []domain.QueryExecution,
	source *domain.SourceInfo,
	searchWindow time.Duration,
) float64 {
	msgTime := msg.CreatedTime()

	if !msgTime.IsZero() && len(assigned) > 0 {
		if gap, ok := minPositiveGap(msgTime, assigned); ok {
			return gap
		}
	}

	if !msgTime.IsZero() && len(assigned) == 0 {
		if gap, ok := earliestGapInWindow(msgTime, pool, searchWindow); ok {
			return gap
		}
	}

	if source != nil && source.AIOverheadSec > 0 {
		return source.AIOverheadSec
	}

	return 0.0
}

// minPositiveGap returns the smallest strictly positive start-time gap in
// seconds across the assigned statements.
func minPositiveGap(msgTime time.Time, assigned []domain.QueryExecution) (float64, bool) {
	best := 0.0
	found := false
	for i := range assigned {
		gap := assigned[i].StartTime.Sub(msgTime).Seconds()
		if gap <= 0 {
			continue
		}
		if !found || gap < best {
			best = gap
			found = true
		}
	}
	return best, found
}

// earliestGapInWindow scans the whole space pool for the earliest statement
// starting in (0, window] after the message.
func earliestGapInWindow(msgTime time.Time, pool []domain.QueryExecution, window time.Duration) (float64, bool) {
	best := 0.0
	found := false
	for i := range pool {
		gap := pool[i].StartTime.Sub(msgTime)
		if gap <= 0 || gap > window {
			continue
		}
		sec := gap.Seconds()
		if !found || sec < best {
			best = sec
			found = true
		}
	}
	return best, found
}
