// Package engine implements the conversation-query correlation and
// bottleneck classification engine. All computation is synchronous and
// in-memory; collaborator I/O happens before the engine runs.
package engine

import "time"

// Tuning holds the empirically derived correlation parameters. The window
// values came from observing real workloads and have no analytical
// derivation, so they are configurable rather than hard-coded.
type Tuning struct {
	// CorrelationWindowSec is how long after a message a statement may start
	// and still be attributed to it.
	CorrelationWindowSec int `yaml:"correlation_window_sec"`
	// OverheadSearchWindowSec bounds the space-wide search used to estimate
	// AI overhead for messages with no causally linked statements.
	OverheadSearchWindowSec int `yaml:"overhead_search_window_sec"`
	// SlowAISec flags a message whose AI think-time exceeds this value.
	SlowAISec float64 `yaml:"slow_ai_sec"`
	// SlowQueryMs flags a statement whose total duration reaches this value.
	SlowQueryMs int64 `yaml:"slow_query_ms"`
}

// DefaultTuning returns the production defaults.
func DefaultTuning() Tuning {
	return Tuning{
		CorrelationWindowSec:    120,
		OverheadSearchWindowSec: 300,
		SlowAISec:               10.0,
		SlowQueryMs:             10000,
	}
}

// CorrelationWindow returns the correlation window as a duration.
func (t Tuning) CorrelationWindow() time.Duration {
	return time.Duration(t.CorrelationWindowSec) * time.Second
}

// OverheadSearchWindow returns the overhead search window as a duration.
func (t Tuning) OverheadSearchWindow() time.Duration {
	return time.Duration(t.OverheadSearchWindowSec) * time.Second
}

// Normalize fills zero-valued fields with defaults so a partially specified
// tuning file never disables a threshold.
func (t Tuning) Normalize() Tuning {
	def := DefaultTuning()
	if t.CorrelationWindowSec <= 0 {
		t.CorrelationWindowSec = def.CorrelationWindowSec
	}
	if t.OverheadSearchWindowSec <= 0 {
		t.OverheadSearchWindowSec = def.OverheadSearchWindowSec
	}
	if t.SlowAISec <= 0 {
		t.SlowAISec = def.SlowAISec
	}
	if t.SlowQueryMs <= 0 {
		t.SlowQueryMs = def.SlowQueryMs
	}
	return t
}
