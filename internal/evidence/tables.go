package evidence

import "github.com/saaga0h/canopy/internal/environment"

// Names of tunable observations. Defaults live in defaultObservations.
const (
	ObsNightTempHigh      = "night_temp_high"
	ObsTempExtremeHeat    = "temp_extreme_heat"
	ObsTempHighHeat       = "temp_high_heat"
	ObsTempWarmLateFlower = "temp_warm_late_flower"
	ObsTempWarm           = "temp_warm"
	ObsTempExtremeCold    = "temp_extreme_cold"
	ObsTempCold           = "temp_cold"

	ObsHumidityTooDry           = "humidity_too_dry"
	ObsHumidityHighVegEarly     = "humidity_high_veg_early"
	ObsHumidityHighVegLate      = "humidity_high_veg_late"
	ObsHumidityRangeFlowerEarly = "humidity_out_of_range_flower_early"
	ObsHumidityRangeFlowerLate  = "humidity_out_of_range_flower_late"

	ObsCO2Low  = "co2_low"
	ObsCO2High = "co2_high"

	ObsActiveDesiccation = "active_desiccation"
	ObsActiveSaturation  = "active_saturation"

	ObsVPDStressVegEarly        = "vpd_stress_veg_early"
	ObsVPDMildStressVegEarly    = "vpd_mild_stress_veg_early"
	ObsVPDStressVegLate         = "vpd_stress_veg_late"
	ObsVPDMildStressVegLate     = "vpd_mild_stress_veg_late"
	ObsVPDStressFlowerEarly     = "vpd_stress_flower_early"
	ObsVPDMildStressFlowerEarly = "vpd_mild_stress_flower_early"
	ObsVPDStressFlowerLate      = "vpd_stress_flower_late"
	ObsVPDMildStressFlowerLate  = "vpd_mild_stress_flower_late"

	ObsTrendFastRise  = "trend_fast_rise"
	ObsTrendSlowRise  = "trend_slow_rise"
	ObsTrendStatsRise = "trend_stats_rise"

	ObsPerfect               = "perfect"
	ObsGood                  = "good"
	ObsAcceptable            = "acceptable"
	ObsOutOfRange            = "out_of_range"
	ObsVPDOutOfRange         = "vpd_out_of_range"
	ObsCO2LateFlowerOK       = "co2_late_flower_ok"
	ObsCO2LateFlowerHigh     = "co2_late_flower_elevated"
	ObsSystemFighting        = "system_fighting"
	ObsPostHarvestInRange    = "post_harvest_in_range"
	ObsPostHarvestOutOfRange = "post_harvest_out_of_range"

	ObsMoldTrendIndicator   = "mold_trend_indicator"
	ObsMoldTrendStats       = "mold_trend_stats"
	ObsMoldLateFlower       = "mold_late_flower"
	ObsMoldTempDangerZone   = "mold_temp_danger_zone"
	ObsMoldLightsOff        = "mold_lights_off"
	ObsMoldHumidityNight    = "mold_humidity_high_night"
	ObsMoldVPDLowNight      = "mold_vpd_low_night"
	ObsMoldHumidityDay      = "mold_humidity_high_day"
	ObsMoldVPDLowDay        = "mold_vpd_low_day"
	ObsMoldFanOff           = "mold_fan_off"
	ObsMoldStagnantAir      = "mold_stagnant_air"
	ObsMoldHumidifierOn     = "mold_humidifier_on"
	ObsMoldDehumIneffective = "mold_dehumidifier_ineffective"
)

var defaultObservations = map[string]Observation{
	ObsNightTempHigh:      {0.80, 0.20},
	ObsTempExtremeHeat:    {0.98, 0.05},
	ObsTempHighHeat:       {0.85, 0.15},
	ObsTempWarmLateFlower: {0.70, 0.30},
	ObsTempWarm:           {0.65, 0.30},
	ObsTempExtremeCold:    {0.95, 0.08},
	ObsTempCold:           {0.80, 0.20},

	ObsHumidityTooDry:           {0.85, 0.20},
	ObsHumidityHighVegEarly:     {0.80, 0.20},
	ObsHumidityHighVegLate:      {0.85, 0.15},
	ObsHumidityRangeFlowerEarly: {0.75, 0.25},
	ObsHumidityRangeFlowerLate:  {0.85, 0.15},

	ObsCO2Low:  {0.80, 0.25},
	ObsCO2High: {0.95, 0.10},

	ObsActiveDesiccation: {0.99, 0.01},
	ObsActiveSaturation:  {0.90, 0.15},

	ObsVPDStressVegEarly:        {0.85, 0.15},
	ObsVPDMildStressVegEarly:    {0.60, 0.30},
	ObsVPDStressVegLate:         {0.80, 0.18},
	ObsVPDMildStressVegLate:     {0.55, 0.35},
	ObsVPDStressFlowerEarly:     {0.85, 0.15},
	ObsVPDMildStressFlowerEarly: {0.60, 0.30},
	ObsVPDStressFlowerLate:      {0.90, 0.12},
	ObsVPDMildStressFlowerLate:  {0.65, 0.28},

	ObsTrendFastRise:  {0.95, 0.15},
	ObsTrendSlowRise:  {0.75, 0.30},
	ObsTrendStatsRise: {0.85, 0.25},

	ObsPerfect:               {0.95, 0.20},
	ObsGood:                  {0.85, 0.30},
	ObsAcceptable:            {0.65, 0.45},
	ObsOutOfRange:            {0.20, 0.75},
	ObsVPDOutOfRange:         {0.25, 0.70},
	ObsCO2LateFlowerOK:       {0.90, 0.25},
	ObsCO2LateFlowerHigh:     {0.40, 0.60},
	ObsSystemFighting:        {0.40, 0.70},
	ObsPostHarvestInRange:    {0.95, 0.10},
	ObsPostHarvestOutOfRange: {0.10, 0.90},

	ObsMoldTrendIndicator:   {0.90, 0.20},
	ObsMoldTrendStats:       {0.85, 0.25},
	ObsMoldLateFlower:       {0.80, 0.20},
	ObsMoldTempDangerZone:   {0.85, 0.30},
	ObsMoldLightsOff:        {0.75, 0.30},
	ObsMoldHumidityNight:    {0.99, 0.10},
	ObsMoldVPDLowNight:      {0.95, 0.20},
	ObsMoldHumidityDay:      {0.95, 0.20},
	ObsMoldVPDLowDay:        {0.90, 0.25},
	ObsMoldFanOff:           {0.80, 0.15},
	ObsMoldStagnantAir:      {0.85, 0.25},
	ObsMoldHumidifierOn:     {0.90, 0.20},
	ObsMoldDehumIneffective: {0.95, 0.10},
}

// band is an inclusive numeric range
type band struct {
	Low, High float64
}

func (b band) contains(v float64) bool {
	return between(v, b.Low, b.High)
}

func between(v, low, high float64) bool {
	return v >= low && v <= high
}

// vpdStressBand holds the stress and mild-stress VPD bands for a stage and
// time of day, with the names of the observations each records
type vpdStressBand struct {
	Stress    band
	Mild      band
	StressObs string
	MildObs   string
}

type dayNight[T any] struct {
	Day   T
	Night T
}

func (d dayNight[T]) pick(night bool) T {
	if night {
		return d.Night
	}
	return d.Day
}

var vpdStressTable = map[environment.Stage]dayNight[vpdStressBand]{
	environment.VegEarly: {
		Day:   vpdStressBand{band{0.3, 1.0}, band{0.4, 0.8}, ObsVPDStressVegEarly, ObsVPDMildStressVegEarly},
		Night: vpdStressBand{band{0.3, 1.0}, band{0.4, 0.8}, ObsVPDStressVegEarly, ObsVPDMildStressVegEarly},
	},
	environment.VegLate: {
		Day:   vpdStressBand{band{0.6, 1.4}, band{0.8, 1.2}, ObsVPDStressVegLate, ObsVPDMildStressVegLate},
		Night: vpdStressBand{band{0.3, 1.0}, band{0.5, 0.8}, ObsVPDStressVegLate, ObsVPDMildStressVegLate},
	},
	environment.FlowerEarly: {
		Day:   vpdStressBand{band{0.8, 1.6}, band{1.0, 1.5}, ObsVPDStressFlowerEarly, ObsVPDMildStressFlowerEarly},
		Night: vpdStressBand{band{0.5, 1.1}, band{0.7, 1.0}, ObsVPDStressFlowerEarly, ObsVPDMildStressFlowerEarly},
	},
	environment.FlowerLate: {
		Day:   vpdStressBand{band{1.0, 1.6}, band{1.2, 1.5}, ObsVPDStressFlowerLate, ObsVPDMildStressFlowerLate},
		Night: vpdStressBand{band{0.6, 1.2}, band{0.8, 1.1}, ObsVPDStressFlowerLate, ObsVPDMildStressFlowerLate},
	},
}

// scoredBand pairs a range with the observation recorded when a value falls in it
type scoredBand struct {
	band
	Prob Observation
}

// vpdOptimalTable entries are checked in order; the first match wins
var vpdOptimalTable = map[environment.Stage]dayNight[[]scoredBand]{
	environment.VegEarly: {
		Day:   []scoredBand{{band{0.5, 0.7}, Observation{0.95, 0.18}}, {band{0.4, 0.8}, Observation{0.80, 0.28}}},
		Night: []scoredBand{{band{0.4, 0.8}, Observation{0.90, 0.20}}},
	},
	environment.VegLate: {
		Day:   []scoredBand{{band{0.9, 1.1}, Observation{0.95, 0.18}}, {band{0.8, 1.2}, Observation{0.85, 0.25}}},
		Night: []scoredBand{{band{0.6, 1.1}, Observation{0.90, 0.20}}},
	},
	environment.FlowerEarly: {
		Day:   []scoredBand{{band{1.1, 1.4}, Observation{0.95, 0.18}}, {band{1.0, 1.5}, Observation{0.85, 0.25}}},
		Night: []scoredBand{{band{0.8, 1.2}, Observation{0.90, 0.20}}},
	},
	environment.FlowerLate: {
		Day:   []scoredBand{{band{1.3, 1.5}, Observation{0.95, 0.15}}, {band{1.2, 1.6}, Observation{0.85, 0.22}}},
		Night: []scoredBand{{band{0.9, 1.2}, Observation{0.90, 0.20}}},
	},
}

// postHarvestRanges holds the target temperature and humidity for drying and curing
var postHarvestRanges = map[Signal]struct {
	Temperature band
	Humidity    band
}{
	Drying: {Temperature: band{15, 21}, Humidity: band{45, 55}},
	Curing: {Temperature: band{18, 21}, Humidity: band{55, 60}},
}
