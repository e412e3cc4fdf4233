// Package usage provides usage-counter value types and pure functions,
// including the threshold-crossing policy for quota warnings.
package usage

import "time"

// Counter is one per-period usage counter (value type).
// Exactly one live counter exists per (subscription, component) for the
// subscription's current period; past-period counters are retained
// read-only for reporting.
type Counter struct {
	SubscriptionID string
	ComponentID    string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Value          int64
	UpdatedAt      time.Time
}

// Boundaries are the warning percentages, in ascending order.
var Boundaries = []int{80, 90, 100}

// ThresholdCount returns the counter value at which pct percent of limit
// is reached (rounded up, so the boundary is crossed by the increment that
// reaches it). This is a PURE function.
func ThresholdCount(limit int64, pct int) int64 {
	return (limit*int64(pct) + 99) / 100
}

// CrossedBoundaries returns the boundaries crossed by a single increment
// from prev to next against limit, ascending. A boundary b is crossed when
// prev < threshold(b) <= next, so each boundary fires exactly once per
// period no matter how usage is batched. Returns nil for unbounded or
// non-positive limits. This is a PURE function.
func CrossedBoundaries(limit, prev, next int64) []int {
	if limit <= 0 {
		return nil
	}
	var crossed []int
	for _, pct := range Boundaries {
		t := ThresholdCount(limit, pct)
		if prev < t && next >= t {
			crossed = append(crossed, pct)
		}
	}
	return crossed
}

// Percent returns usage as a percentage of limit, 0 when limit <= 0.
// This is a PURE function.
func Percent(limit, value int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(value) / float64(limit) * 100
}
