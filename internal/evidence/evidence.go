// Package evidence turns a zone snapshot into likelihood observations and
// ranked reasons for each inferred signal.
package evidence

import (
	"fmt"
	"sort"
)

// Signal names an inferred per-zone condition
type Signal string

const (
	Stress        Signal = "stress"
	MoldRisk      Signal = "mold_risk"
	Optimal       Signal = "optimal"
	Drying        Signal = "drying"
	Curing        Signal = "curing"
	LightSchedule Signal = "light_schedule"
)

// Signals lists every known signal
var Signals = []Signal{Stress, MoldRisk, Optimal, Drying, Curing, LightSchedule}

// Bayesian reports whether the signal is computed by the combiner.
// The light schedule is deterministic.
func (s Signal) Bayesian() bool {
	return s != LightSchedule
}

// Valid reports whether s is a known signal
func (s Signal) Valid() bool {
	for _, k := range Signals {
		if s == k {
			return true
		}
	}
	return false
}

// Observation is a pair of likelihoods P(evidence|true), P(evidence|false)
type Observation struct {
	PTrue  float64 `yaml:"p_true" json:"p_true" validate:"gt=0,lte=1"`
	PFalse float64 `yaml:"p_false" json:"p_false" validate:"gt=0,lte=1"`
}

// Reason is a human-readable explanation ranked by weight
type Reason struct {
	Weight float64 `json:"weight"`
	Label  string  `json:"label"`
}

// Evidence accumulates observations and reasons for one evaluation
type Evidence struct {
	Observations []Observation
	Reasons      []Reason
	Trends       map[string]string
}

// Add records an observation with a reason weighted by its PTrue
func (e *Evidence) Add(o Observation, format string, args ...interface{}) {
	e.AddWeighted(o, o.PTrue, format, args...)
}

// AddWeighted records an observation with an explicit reason weight
func (e *Evidence) AddWeighted(o Observation, weight float64, format string, args ...interface{}) {
	e.Observations = append(e.Observations, o)
	e.Reasons = append(e.Reasons, Reason{Weight: weight, Label: fmt.Sprintf(format, args...)})
}

// Observe records an observation without a reason
func (e *Evidence) Observe(o Observation) {
	e.Observations = append(e.Observations, o)
}

// Merge appends other's observations, reasons and trend labels
func (e *Evidence) Merge(other Evidence) {
	e.Observations = append(e.Observations, other.Observations...)
	e.Reasons = append(e.Reasons, other.Reasons...)
	for k, v := range other.Trends {
		e.setTrend(k, v)
	}
}

func (e *Evidence) setTrend(key, direction string) {
	if e.Trends == nil {
		e.Trends = make(map[string]string)
	}
	e.Trends[key] = direction
}

// Ranked returns the reasons sorted by weight descending; ties break by
// label descending so the order is deterministic.
func Ranked(reasons []Reason) []Reason {
	out := make([]Reason, len(reasons))
	copy(out, reasons)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Label > out[j].Label
	})
	return out
}
