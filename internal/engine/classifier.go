package engine

import "genie-audit/internal/domain"

// Classification thresholds. Ratios are evaluated against total duration in
// strict priority order: priority encodes diagnosability, not magnitude.
const (
	computeWaitRatio = 0.5
	queueWaitRatio   = 0.3
	compilationRatio = 0.4
	largeScanBytes   = int64(1 << 30) // 1 GiB
	slowExecutionMs  = int64(10000)
)

// Speed category boundaries (absolute total duration).
const (
	fastMaxMs     = int64(5000)
	moderateMaxMs = int64(10000)
	slowMaxMs     = int64(30000)
)

// ClassifyBottleneck maps a statement's timing profile to its dominant
// bottleneck. First match wins; a degenerate or instant statement is NORMAL.
func ClassifyBottleneck(compilationMs, executionMs, queueWaitMs, computeWaitMs, totalMs, bytesScanned int64) domain.Bottleneck {
	totalMs = nonNegative(totalMs)
	compilationMs = nonNegative(compilationMs)
	executionMs = nonNegative(executionMs)
	queueWaitMs = nonNegative(queueWaitMs)
	computeWaitMs = nonNegative(computeWaitMs)
	bytesScanned = nonNegative(bytesScanned)

	if totalMs <= 0 {
		return domain.BottleneckNormal
	}

	total := float64(totalMs)
	switch {
	case float64(computeWaitMs)/total > computeWaitRatio:
		return domain.BottleneckComputeStartup
	case float64(queueWaitMs)/total > queueWaitRatio:
		return domain.BottleneckQueueWait
	case float64(compilationMs)/total > compilationRatio:
		return domain.BottleneckCompilation
	case bytesScanned > largeScanBytes:
		return domain.BottleneckLargeScan
	case executionMs > slowExecutionMs:
		return domain.BottleneckSlowExecution
	default:
		return domain.BottleneckNormal
	}
}

// SpeedCategoryFor labels a statement by absolute total duration.
func SpeedCategoryFor(durationMs int64) domain.SpeedCategory {
	durationMs = nonNegative(durationMs)
	switch {
	case durationMs < fastMaxMs:
		return domain.SpeedFast
	case durationMs < moderateMaxMs:
		return domain.SpeedModerate
	case durationMs < slowMaxMs:
		return domain.SpeedSlow
	default:
		return domain.SpeedCritical
	}
}

// Classify fills in the derived Bottleneck and SpeedCategory labels on q.
func Classify(q *domain.QueryExecution) {
	q.Bottleneck = ClassifyBottleneck(
		q.CompilationMs, q.ExecutionMs, q.QueueWaitMs,
		q.ComputeWaitMs, q.TotalDurationMs, q.BytesScanned,
	)
	q.SpeedCategory = SpeedCategoryFor(q.TotalDurationMs)
}

// Timeline breaks a statement's duration into sequential phases with their
// share of total time. Percentages are computed against max(total, 1) so an
// instant statement never divides by zero.
func Timeline(q *domain.QueryExecution) []domain.TimelinePhase {
	total := nonNegative(q.TotalDurationMs)
	if total <= 0 {
		total = 1
	}

	phases := []struct {
		name string
		ms   int64
	}{
		{"Queue Wait", nonNegative(q.QueueWaitMs)},
		{"Compute Startup", nonNegative(q.ComputeWaitMs)},
		{"Compilation", nonNegative(q.CompilationMs)},
		{"Execution", nonNegative(q.ExecutionMs)},
		{"Result Fetch", nonNegative(q.ResultFetchMs)},
	}

	timeline := make([]domain.TimelinePhase, 0, len(phases))
	var start int64
	for _, p := range phases {
		pct := float64(p.ms) / float64(total) * 100
		timeline = append(timeline, domain.TimelinePhase{
			Phase:      p.name,
			StartMs:    start,
			DurationMs: p.ms,
			Percentage: roundTo(pct, 1),
		})
		start += p.ms
	}
	return timeline
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func roundTo(v float64, decimals int) float64 {
	scale := 1.0
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}
