package environment

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/saaga0h/canopy/internal/registry"
	"github.com/sixdouglas/suncalc"
)

// PlantLister returns the plants assigned to a zone
type PlantLister interface {
	Plants(ctx context.Context, zoneID string) ([]registry.Plant, error)
}

// Builder assembles State snapshots from the value source and registry
type Builder struct {
	source    ValueSource
	plants    PlantLister
	latitude  float64
	longitude float64
	logger    *slog.Logger
}

// NewBuilder creates a state builder. Latitude and longitude are used for
// zones lit by daylight that have no light entity.
func NewBuilder(source ValueSource, plants PlantLister, latitude, longitude float64, logger *slog.Logger) *Builder {
	return &Builder{
		source:    source,
		plants:    plants,
		latitude:  latitude,
		longitude: longitude,
		logger:    logger,
	}
}

// Build returns a fresh snapshot of zone at now. Unavailable inputs are
// reported as missing readings, never as errors.
func (b *Builder) Build(ctx context.Context, zone registry.Zone, now time.Time) State {
	e := zone.Entities

	st := State{
		Zone:        zone.ID,
		Temperature: b.reading(ctx, e.Temperature),
		Humidity:    b.reading(ctx, e.Humidity),
		VPD:         b.reading(ctx, e.VPD),
		CO2:         b.reading(ctx, e.CO2),
		Light:       b.light(ctx, zone, now),

		CirculationFan: b.switchState(ctx, e.CirculationFan),
		Dehumidifier:   b.switchState(ctx, e.Dehumidifier),
		Exhaust:        b.level(ctx, e.Exhaust, 10),
		Humidifier:     b.level(ctx, e.Humidifier, 1),
	}

	if !st.VPD.OK && st.Temperature.OK && st.Humidity.OK {
		st.VPD = Some(CalculateVPD(st.Temperature.Value, st.Humidity.Value))
	}

	if !registry.IsPostHarvest(zone.ID) {
		st.VegDays, st.FlowerDays = b.stageDays(ctx, zone.ID, now)
	}

	st.Trends = map[Quantity]TrendIndicator{
		Temperature: b.trend(ctx, e.Temperature, e.TemperatureTrend, e.TemperatureStats),
		Humidity:    b.trend(ctx, e.Humidity, e.HumidityTrend, e.HumidityStats),
		VPD:         b.trend(ctx, e.VPD, e.VPDTrend, e.VPDStats),
	}

	return st
}

func (b *Builder) value(ctx context.Context, entityID string) (Value, bool) {
	if entityID == "" {
		return Value{}, false
	}
	v, err := b.source.Get(ctx, entityID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			b.logger.Debug("Entity value unavailable", "entity_id", entityID, "error", err)
		}
		return Value{}, false
	}
	return v, v.Available()
}

func (b *Builder) reading(ctx context.Context, entityID string) Reading {
	v, ok := b.value(ctx, entityID)
	if !ok {
		return Missing
	}
	if f, ok := v.Float(); ok {
		return Some(f)
	}
	return Missing
}

// level reads a numeric actuator level; on/off states map to onLevel and 0
func (b *Builder) level(ctx context.Context, entityID string, onLevel float64) Reading {
	v, ok := b.value(ctx, entityID)
	if !ok {
		return Missing
	}
	if f, ok := v.Float(); ok {
		return Some(f)
	}
	switch parseSwitch(v.State) {
	case SwitchOn:
		return Some(onLevel)
	case SwitchOff:
		return Some(0)
	}
	return Missing
}

func (b *Builder) switchState(ctx context.Context, entityID string) Switch {
	v, ok := b.value(ctx, entityID)
	if !ok {
		return SwitchUnknown
	}
	if f, ok := v.Float(); ok {
		if f > 0 {
			return SwitchOn
		}
		return SwitchOff
	}
	return parseSwitch(v.State)
}

func (b *Builder) light(ctx context.Context, zone registry.Zone, now time.Time) LightState {
	if zone.Entities.Light == "" {
		if zone.Daylight {
			return b.daylight(now)
		}
		return LightUnknown
	}

	switch b.switchState(ctx, zone.Entities.Light) {
	case SwitchOn:
		return LightOn
	case SwitchOff:
		return LightOff
	}
	return LightUnknown
}

// daylight treats the sun above the horizon as lights on
func (b *Builder) daylight(now time.Time) LightState {
	position := suncalc.GetPosition(now, b.latitude, b.longitude)
	if position.Altitude*(180.0/math.Pi) > 0 {
		return LightOn
	}
	return LightOff
}

func (b *Builder) trend(ctx context.Context, source, indicator, stats string) TrendIndicator {
	ti := TrendIndicator{Source: source}

	if indicator != "" {
		ti.HasIndicator = true
		if v, ok := b.value(ctx, indicator); ok {
			ti.Rising = parseSwitch(v.State)
			if g, ok := v.Attribute("gradient"); ok {
				ti.Gradient = g
			}
		}
	}

	if stats != "" {
		ti.HasStats = true
		if v, ok := b.value(ctx, stats); ok {
			if c, ok := v.Attribute("change"); ok {
				ti.Change = Some(c)
			}
		}
	}

	return ti
}

// stageDays returns the largest veg and flower day counts among the zone's plants
func (b *Builder) stageDays(ctx context.Context, zoneID string, now time.Time) (veg, flower int) {
	if b.plants == nil {
		return 0, 0
	}
	plants, err := b.plants.Plants(ctx, zoneID)
	if err != nil {
		b.logger.Warn("Failed to load plants, stage counters default to 0", "zone", zoneID, "error", err)
		return 0, 0
	}

	for _, p := range plants {
		if d := DaysSince(p.VegStart, now); d > veg {
			veg = d
		}
		if d := DaysSince(p.FlowerStart, now); d > flower {
			flower = d
		}
	}
	return veg, flower
}

// DaysSince counts whole calendar days from start to now in UTC.
// A nil or future start counts as 0.
func DaysSince(start *time.Time, now time.Time) int {
	if start == nil {
		return 0
	}
	s := start.UTC()
	n := now.UTC()
	from := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	days := int(to.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func parseSwitch(state string) Switch {
	switch strings.ToLower(state) {
	case "on", "true", "open":
		return SwitchOn
	case "off", "false", "closed":
		return SwitchOff
	}
	return SwitchUnknown
}
