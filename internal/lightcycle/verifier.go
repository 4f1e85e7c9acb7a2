// Package lightcycle checks that a zone's lights follow the photoperiod
// expected for its growth stage.
package lightcycle

import (
	"fmt"
	"strconv"
	"time"

	"github.com/saaga0h/canopy/internal/environment"
)

// Photoperiod is the light schedule bucket derived from flower days
type Photoperiod string

const (
	PhotoperiodVeg         Photoperiod = "veg"
	PhotoperiodFlowerEarly Photoperiod = "flower_early"
	PhotoperiodFlowerMid   Photoperiod = "flower_mid"
	PhotoperiodFlowerLate  Photoperiod = "flower_late"
)

// PhotoperiodOf buckets flower days
func PhotoperiodOf(flowerDays int) Photoperiod {
	switch {
	case flowerDays <= 0:
		return PhotoperiodVeg
	case flowerDays < 21:
		return PhotoperiodFlowerEarly
	case flowerDays < 42:
		return PhotoperiodFlowerMid
	default:
		return PhotoperiodFlowerLate
	}
}

// Schedule holds the expected day length per photoperiod and the slack
// allowed before a state is considered overdue. A zero per-stage flower
// value uses FlowerDayHours.
type Schedule struct {
	VegDayHours         float64
	FlowerDayHours      float64
	FlowerEarlyDayHours float64
	FlowerMidDayHours   float64
	FlowerLateDayHours  float64
	Tolerance           time.Duration
}

// DefaultSchedule is 18/6 in veg and 12/12 in flower
func DefaultSchedule() Schedule {
	return Schedule{VegDayHours: 18, FlowerDayHours: 12, Tolerance: 15 * time.Minute}
}

// DayHours returns the expected lights-on hours for p
func (s Schedule) DayHours(p Photoperiod) float64 {
	var hours float64
	switch p {
	case PhotoperiodVeg:
		return s.VegDayHours
	case PhotoperiodFlowerEarly:
		hours = s.FlowerEarlyDayHours
	case PhotoperiodFlowerMid:
		hours = s.FlowerMidDayHours
	case PhotoperiodFlowerLate:
		hours = s.FlowerLateDayHours
	}
	if hours > 0 {
		return hours
	}
	return s.FlowerDayHours
}

// Result is one verification outcome
type Result struct {
	Compliant        bool          `json:"compliant"`
	Photoperiod      Photoperiod   `json:"photoperiod"`
	ExpectedSchedule string        `json:"expected_schedule"`
	TimeInState      time.Duration `json:"time_in_state"`
	Light            string        `json:"light"`
}

// Verifier tracks the last light state of one zone and how long it has
// held. It is not safe for concurrent use; each instance owns its own.
type Verifier struct {
	schedule Schedule

	known      bool
	on         bool
	changedAt  time.Time
	lastResult Result
}

// NewVerifier creates a verifier with no observed state
func NewVerifier(schedule Schedule) *Verifier {
	return &Verifier{schedule: schedule}
}

// Observe records the light state at now and checks the time spent in the
// current state against the limit for the photoperiod. An unknown light
// leaves the tracked state untouched and is never compliant.
func (v *Verifier) Observe(light environment.LightState, flowerDays int, now time.Time) Result {
	period := PhotoperiodOf(flowerDays)
	dayHours := v.schedule.DayHours(period)

	result := Result{
		Photoperiod:      period,
		ExpectedSchedule: formatSchedule(dayHours),
		Light:            light.String(),
	}

	if light == environment.LightUnknown {
		if v.known {
			result.TimeInState = now.Sub(v.changedAt)
		}
		v.lastResult = result
		return result
	}

	on := light == environment.LightOn
	if !v.known || on != v.on {
		v.known = true
		v.on = on
		v.changedAt = now
	}

	limitHours := dayHours
	if !on {
		limitHours = 24 - dayHours
	}
	limit := time.Duration(limitHours*float64(time.Hour)) + v.schedule.Tolerance

	result.TimeInState = now.Sub(v.changedAt)
	result.Compliant = result.TimeInState <= limit
	v.lastResult = result
	return result
}

// Last returns the most recent result
func (v *Verifier) Last() Result {
	return v.lastResult
}

func formatSchedule(dayHours float64) string {
	return fmt.Sprintf("%s/%s", formatHours(dayHours), formatHours(24-dayHours))
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
