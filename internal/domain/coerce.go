package domain

import "strconv"

// CoerceInt64 converts a loosely typed value (JSON number, numeric string,
// nil) to a non-negative int64. Invalid or missing values default to def.
// Upstream APIs serialize large counters inconsistently (sometimes as numbers,
// sometimes as strings), so every numeric boundary goes through here.
func CoerceInt64(v interface{}, def int64) int64 {
	n := def
	switch t := v.(type) {
	case nil:
	case int64:
		n = t
	case int:
		n = int64(t)
	case float64:
		n = int64(t)
	case string:
		if t == "" {
			break
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			n = int64(f)
		}
	}
	if n < 0 {
		return def
	}
	return n
}

// CoerceFloat64 converts a loosely typed value to a non-negative float64,
// defaulting to def on nil, invalid, or negative input.
func CoerceFloat64(v interface{}, def float64) float64 {
	f := def
	switch t := v.(type) {
	case nil:
	case float64:
		f = t
	case int64:
		f = float64(t)
	case int:
		f = float64(t)
	case string:
		if t == "" {
			break
		}
		if parsed, err := strconv.ParseFloat(t, 64); err == nil {
			f = parsed
		}
	}
	if f < 0 {
		return def
	}
	return f
}
