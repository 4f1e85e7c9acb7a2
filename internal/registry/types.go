// Package registry reads zone and plant records. Records are owned by an
// external system; Canopy never writes them.
package registry

import (
	"context"
	"strings"
	"time"
)

// Canonical post-harvest zone identifiers
const (
	ZoneDry  = "dry"
	ZoneCure = "cure"
)

var zoneAliases = map[string]string{
	"dry":           ZoneDry,
	"drying":        ZoneDry,
	"dry_overview":  ZoneDry,
	"cure":          ZoneCure,
	"cure_overview": ZoneCure,
}

// CanonicalZone maps known aliases of the dry and cure zones to their
// canonical id. Any other id is returned unchanged.
func CanonicalZone(id string) string {
	if c, ok := zoneAliases[strings.ToLower(id)]; ok {
		return c
	}
	return id
}

// IsPostHarvest reports whether the zone is the canonical dry or cure zone
func IsPostHarvest(id string) bool {
	c := CanonicalZone(id)
	return c == ZoneDry || c == ZoneCure
}

// Zone describes a monitored cultivation zone and the entities feeding it
type Zone struct {
	ID            string        `yaml:"id" json:"id" validate:"required"`
	Name          string        `yaml:"name" json:"name"`
	Daylight      bool          `yaml:"daylight" json:"daylight"`
	Entities      Entities      `yaml:"entities" json:"entities"`
	Notifications Notifications `yaml:"notifications" json:"notifications"`
}

// DisplayName returns the name used in alert titles
func (z Zone) DisplayName() string {
	if z.Name != "" {
		return z.Name
	}
	return z.ID
}

// Entities holds the entity ids configured for a zone. Empty means not configured.
type Entities struct {
	Temperature    string `yaml:"temperature" json:"temperature,omitempty"`
	Humidity       string `yaml:"humidity" json:"humidity,omitempty"`
	VPD            string `yaml:"vpd" json:"vpd,omitempty"`
	CO2            string `yaml:"co2" json:"co2,omitempty"`
	Light          string `yaml:"light" json:"light,omitempty"`
	CirculationFan string `yaml:"circulation_fan" json:"circulation_fan,omitempty"`
	Dehumidifier   string `yaml:"dehumidifier" json:"dehumidifier,omitempty"`
	Exhaust        string `yaml:"exhaust" json:"exhaust,omitempty"`
	Humidifier     string `yaml:"humidifier" json:"humidifier,omitempty"`

	// External trend indicators (binary, with optional gradient attribute)
	TemperatureTrend string `yaml:"temperature_trend" json:"temperature_trend,omitempty"`
	HumidityTrend    string `yaml:"humidity_trend" json:"humidity_trend,omitempty"`
	VPDTrend         string `yaml:"vpd_trend" json:"vpd_trend,omitempty"`

	// External statistics entities exposing a "change" attribute
	TemperatureStats string `yaml:"temperature_stats" json:"temperature_stats,omitempty"`
	HumidityStats    string `yaml:"humidity_stats" json:"humidity_stats,omitempty"`
	VPDStats         string `yaml:"vpd_stats" json:"vpd_stats,omitempty"`
}

// All returns every configured entity id
func (e Entities) All() []string {
	ids := []string{
		e.Temperature, e.Humidity, e.VPD, e.CO2, e.Light,
		e.CirculationFan, e.Dehumidifier, e.Exhaust, e.Humidifier,
		e.TemperatureTrend, e.HumidityTrend, e.VPDTrend,
		e.TemperatureStats, e.HumidityStats, e.VPDStats,
	}
	out := ids[:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Notifications is the per-zone alert routing
type Notifications struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Target      string `yaml:"target" json:"target,omitempty"`
	Personality string `yaml:"personality" json:"personality,omitempty"`
}

// Plant is a plant assigned to a zone with its stage start dates
type Plant struct {
	ID          string     `yaml:"id" json:"id" validate:"required"`
	Zone        string     `yaml:"zone" json:"zone" validate:"required"`
	Strain      string     `yaml:"strain" json:"strain,omitempty"`
	VegStart    *time.Time `yaml:"veg_start" json:"veg_start,omitempty"`
	FlowerStart *time.Time `yaml:"flower_start" json:"flower_start,omitempty"`
}

// Registry is the read-only view of zones and plants
type Registry interface {
	// Zones returns all configured zones
	Zones(ctx context.Context) ([]Zone, error)

	// Plants returns the plants currently assigned to a zone
	Plants(ctx context.Context, zoneID string) ([]Plant, error)
}
