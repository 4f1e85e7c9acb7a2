// Package environment assembles the per-evaluation snapshot of a zone.
package environment

import (
	"math"
	"strconv"
)

// LightState is the tri-state light reading. Unknown is never treated as off.
type LightState int

const (
	LightUnknown LightState = iota
	LightOn
	LightOff
)

func (l LightState) String() string {
	switch l {
	case LightOn:
		return "on"
	case LightOff:
		return "off"
	default:
		return "unknown"
	}
}

// Switch is the tri-state reading of an actuator
type Switch int

const (
	SwitchUnknown Switch = iota
	SwitchOn
	SwitchOff
)

// Reading is a numeric sensor value that may be unavailable
type Reading struct {
	Value float64
	OK    bool
}

// Some returns an available reading
func Some(v float64) Reading {
	return Reading{Value: v, OK: true}
}

// Missing is an unavailable reading
var Missing = Reading{}

// String formats the value for reason labels, e.g. "25.3"
func (r Reading) String() string {
	if !r.OK {
		return "unavailable"
	}
	return FormatValue(r.Value)
}

// FormatValue renders a number with the shortest exact representation
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Quantity names a trended measurement
type Quantity string

const (
	Temperature Quantity = "temperature"
	Humidity    Quantity = "humidity"
	VPD         Quantity = "vpd"
)

// TrendIndicator carries externally computed trend information for a quantity
type TrendIndicator struct {
	// Source is the entity whose history the fallback analysis reads
	Source string

	// HasIndicator is set when an external binary trend entity is configured
	HasIndicator bool
	Rising       Switch
	Gradient     float64

	// HasStats is set when an external statistics entity is configured
	HasStats bool
	Change   Reading
}

// State is an immutable snapshot of a zone's conditions for one evaluation
type State struct {
	Zone string

	Temperature Reading
	Humidity    Reading
	VPD         Reading
	CO2         Reading
	Light       LightState

	VegDays    int
	FlowerDays int

	// Optional actuator feedback
	CirculationFan Switch
	Dehumidifier   Switch
	Exhaust        Reading
	Humidifier     Reading

	Trends map[Quantity]TrendIndicator
}

// Night reports whether the lights are explicitly off
func (s State) Night() bool {
	return s.Light == LightOff
}

// Stage returns the growth stage bucket used by band tables
func (s State) Stage() Stage {
	return StageOf(s.VegDays, s.FlowerDays)
}

// Trend returns the trend inputs for q
func (s State) Trend(q Quantity) TrendIndicator {
	return s.Trends[q]
}

// Stage is the growth stage bucket
type Stage int

const (
	VegEarly Stage = iota
	VegLate
	FlowerEarly
	FlowerLate
)

func (s Stage) String() string {
	switch s {
	case VegEarly:
		return "veg_early"
	case VegLate:
		return "veg_late"
	case FlowerEarly:
		return "flower_early"
	default:
		return "flower_late"
	}
}

// Flowering reports whether the stage is one of the flower buckets
func (s Stage) Flowering() bool {
	return s == FlowerEarly || s == FlowerLate
}

// StageOf buckets stage counters: flower days take precedence over veg days
func StageOf(vegDays, flowerDays int) Stage {
	switch {
	case flowerDays >= 42:
		return FlowerLate
	case flowerDays > 0:
		return FlowerEarly
	case vegDays >= 14:
		return VegLate
	default:
		return VegEarly
	}
}

// CalculateVPD derives leaf-air vapour pressure deficit in kPa from
// temperature (°C) and relative humidity (%) using the Tetens equation.
func CalculateVPD(tempC, humidity float64) float64 {
	svp := 0.6108 * math.Exp(17.27*tempC/(tempC+237.3))
	vpd := svp * (1 - humidity/100)
	return math.Round(vpd*100) / 100
}
