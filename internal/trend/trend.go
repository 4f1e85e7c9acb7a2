// Package trend classifies short-term sensor direction from stored history.
package trend

import "time"

// Direction of a series over a window
type Direction string

const (
	Rising  Direction = "rising"
	Falling Direction = "falling"
	Stable  Direction = "stable"
	Unknown Direction = "unknown"
)

// DefaultEpsilon is the delta below which a series counts as stable
const DefaultEpsilon = 0.01

// Result is the outcome of a trend analysis
type Result struct {
	Trend            Direction `json:"trend"`
	CrossedThreshold bool      `json:"crossed_threshold"`
}

// Sample is one historical value. Valid is false for non-numeric states.
type Sample struct {
	Timestamp time.Time
	Value     float64
	Valid     bool
}

// Classify computes the trend of samples ordered oldest first.
// Fewer than two valid samples yields stable. The threshold is crossed only
// when every valid sample is strictly above it.
func Classify(samples []Sample, threshold, epsilon float64) Result {
	var (
		first, last float64
		count       int
		allAbove    = true
	)

	for _, s := range samples {
		if !s.Valid {
			continue
		}
		if count == 0 {
			first = s.Value
		}
		last = s.Value
		count++
		if s.Value <= threshold {
			allAbove = false
		}
	}

	if count < 2 {
		return Result{Trend: Stable}
	}

	delta := last - first
	direction := Stable
	switch {
	case delta > epsilon:
		direction = Rising
	case delta < -epsilon:
		direction = Falling
	}

	return Result{Trend: direction, CrossedThreshold: allAbove}
}
