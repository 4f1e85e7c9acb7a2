package evidence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/saaga0h/canopy/internal/environment"
	"github.com/saaga0h/canopy/internal/trend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type analyzeCall struct {
	entityID  string
	window    time.Duration
	threshold float64
}

type fakeAnalyzer struct {
	results map[string]trend.Result
	calls   []analyzeCall
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, entityID string, window time.Duration, threshold float64) trend.Result {
	f.calls = append(f.calls, analyzeCall{entityID, window, threshold})
	if r, ok := f.results[entityID]; ok {
		return r
	}
	return trend.Result{Trend: trend.Stable}
}

func evaluate(sig Signal, st environment.State) Evidence {
	return NewEvaluator(DefaultTuning(), nil).Evaluate(context.Background(), sig, st)
}

func labels(ev Evidence) []string {
	out := make([]string, len(ev.Reasons))
	for i, r := range ev.Reasons {
		out[i] = r.Label
	}
	return out
}

func TestTemperatureStress(t *testing.T) {
	tests := []struct {
		name   string
		temp   float64
		light  environment.LightState
		flower int
		want   []Observation
		labels []string
	}{
		{"extreme heat", 33, environment.LightOn, 0, []Observation{{0.98, 0.05}}, []string{"Extreme Heat (33)"}},
		{"high heat", 31, environment.LightOn, 0, []Observation{{0.85, 0.15}}, []string{"High Heat (31)"}},
		{"warm late flower", 27.5, environment.LightOn, 42, []Observation{{0.70, 0.30}}, []string{"Temp Warm (27.5)"}},
		{"27.5 before late flower", 27.5, environment.LightOn, 41, nil, nil},
		{"warm", 29, environment.LightOn, 0, []Observation{{0.65, 0.30}}, []string{"Temp Warm (29)"}},
		{"extreme cold", 14, environment.LightOn, 0, []Observation{{0.95, 0.08}}, []string{"Extreme Cold (14)"}},
		{"cold", 17, environment.LightOn, 0, []Observation{{0.80, 0.20}}, []string{"Temp Cold (17)"}},
		{"comfortable", 25, environment.LightOn, 0, nil, nil},
		{
			"night high and warm",
			29, environment.LightOff, 0,
			[]Observation{{0.80, 0.20}, {0.65, 0.30}},
			[]string{"Night Temp High (29)", "Temp Warm (29)"},
		},
		{"unknown light is not night", 25, environment.LightUnknown, 0, nil, nil},
	}

	tuning := DefaultTuning()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev Evidence
			st := environment.State{Temperature: environment.Some(tt.temp), Light: tt.light, FlowerDays: tt.flower}
			temperatureStress(st, tuning, &ev)
			assert.Equal(t, tt.want, ev.Observations)
			if len(tt.labels) == 0 {
				assert.Empty(t, ev.Reasons)
			} else {
				assert.Equal(t, tt.labels, labels(ev))
			}
		})
	}
}

func TestHumidityStress(t *testing.T) {
	tests := []struct {
		name        string
		hum         float64
		veg, flower int
		want        []Observation
	}{
		{"dry any stage", 30, 5, 0, []Observation{{0.85, 0.20}}},
		{"veg early high", 81, 5, 0, []Observation{{0.80, 0.20}}},
		{"veg early ok", 75, 5, 0, nil},
		{"veg late high", 71, 20, 0, []Observation{{0.85, 0.15}}},
		{"flower early low", 44, 30, 10, []Observation{{0.75, 0.25}}},
		{"flower early ok", 50, 30, 10, nil},
		{"flower late low", 39, 30, 50, []Observation{{0.85, 0.15}}},
		{"flower late dry stacks", 30, 30, 50, []Observation{{0.85, 0.20}, {0.85, 0.15}}},
	}

	tuning := DefaultTuning()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev Evidence
			st := environment.State{Humidity: environment.Some(tt.hum), VegDays: tt.veg, FlowerDays: tt.flower}
			humidityStress(st, tuning, &ev)
			assert.Equal(t, tt.want, ev.Observations)
		})
	}
}

func TestVPDStress(t *testing.T) {
	tests := []struct {
		name   string
		vpd    float64
		flower int
		light  environment.LightState
		want   []Observation
	}{
		{"flower late day stress", 1.8, 50, environment.LightOn, []Observation{{0.90, 0.12}}},
		{"flower late day mild", 1.1, 50, environment.LightOn, []Observation{{0.65, 0.28}}},
		{"flower late day ideal", 1.3, 50, environment.LightOn, nil},
		{"flower late night ideal", 0.9, 50, environment.LightOff, nil},
		{"flower late unknown uses day", 0.9, 50, environment.LightUnknown, []Observation{{0.90, 0.12}}},
	}

	tuning := DefaultTuning()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev Evidence
			st := environment.State{VPD: environment.Some(tt.vpd), VegDays: 30, FlowerDays: tt.flower, Light: tt.light}
			vpdStress(st, tuning, &ev)
			assert.Equal(t, tt.want, ev.Observations)
		})
	}
}

func TestVPDStress_TunedProbabilities(t *testing.T) {
	tuning := DefaultTuning()
	require.NoError(t, tuning.Apply([]byte(`
observations:
  vpd_stress_veg_late: {p_true: 0.7, p_false: 0.2}
  vpd_mild_stress_veg_late: {p_true: 0.5, p_false: 0.4}
`)))

	var ev Evidence
	vpdStress(environment.State{VPD: environment.Some(1.6), VegDays: 20, Light: environment.LightOn}, tuning, &ev)
	assert.Equal(t, []Observation{{0.7, 0.2}}, ev.Observations)

	ev = Evidence{}
	vpdStress(environment.State{VPD: environment.Some(1.3), VegDays: 20, Light: environment.LightOn}, tuning, &ev)
	assert.Equal(t, []Observation{{0.5, 0.4}}, ev.Observations)

	ev = Evidence{}
	vpdStress(environment.State{VPD: environment.Some(1.3), FlowerDays: 10, Light: environment.LightOn}, tuning, &ev)
	assert.Nil(t, ev.Observations, "flower early bands are untouched")
}

func TestStress_ActuatorsAndCO2(t *testing.T) {
	st := environment.State{
		Humidity:     environment.Some(38),
		CO2:          environment.Some(1700),
		Dehumidifier: environment.SwitchOn,
		Light:        environment.LightOn,
	}
	ev := evaluate(Stress, st)
	assert.Contains(t, labels(ev), "Active Desiccation (Dehum ON + Low Humidity 38%)")
	assert.Contains(t, labels(ev), "CO2 High (1700)")

	st = environment.State{Humidity: environment.Some(80), Humidifier: environment.Some(1), VegDays: 20}
	ev = evaluate(Stress, st)
	assert.Contains(t, labels(ev), "Active Saturation (Humidifier ON + High Humidity 80% > 75%)")
}

func TestOptimal_UnknownLightTakesDayBranch(t *testing.T) {
	st := environment.State{Temperature: environment.Some(26), Light: environment.LightUnknown}
	ev := evaluate(Optimal, st)
	assert.Equal(t, []Observation{{0.95, 0.20}}, ev.Observations)
	assert.Empty(t, ev.Reasons)

	st.Light = environment.LightOff
	ev = evaluate(Optimal, st)
	require.Len(t, ev.Reasons, 1)
	assert.Equal(t, Reason{Weight: 0.75, Label: "Night temp out of range (26)"}, ev.Reasons[0])
}

func TestOptimalTemperature(t *testing.T) {
	tests := []struct {
		temp   float64
		flower int
		want   Observation
	}{
		{25, 0, Observation{0.95, 0.20}},
		{27, 0, Observation{0.85, 0.30}},
		{29, 0, Observation{0.65, 0.45}},
		{30, 0, Observation{0.20, 0.75}},
		{23, 45, Observation{0.95, 0.20}},
		{27, 45, Observation{0.20, 0.75}},
	}

	for _, tt := range tests {
		var ev Evidence
		st := environment.State{Temperature: environment.Some(tt.temp), FlowerDays: tt.flower, Light: environment.LightOn}
		optimalTemperature(st, DefaultTuning(), &ev)
		require.Len(t, ev.Observations, 1)
		if ev.Observations[0] != tt.want {
			t.Errorf("optimalTemperature(%v, flower %d) = %v, want %v", tt.temp, tt.flower, ev.Observations[0], tt.want)
		}
	}
}

func TestOptimalVPD(t *testing.T) {
	tests := []struct {
		name  string
		vpd   float64
		veg   int
		light environment.LightState
		want  Observation
	}{
		{"veg early best band", 0.6, 5, environment.LightOn, Observation{0.95, 0.18}},
		{"veg early second band", 0.45, 5, environment.LightOn, Observation{0.80, 0.28}},
		{"veg early night", 0.45, 5, environment.LightOff, Observation{0.90, 0.20}},
		{"out of range", 1.5, 5, environment.LightOn, Observation{0.25, 0.70}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev Evidence
			st := environment.State{VPD: environment.Some(tt.vpd), VegDays: tt.veg, Light: tt.light}
			optimalVPD(st, DefaultTuning(), &ev)
			require.Len(t, ev.Observations, 1)
			assert.Equal(t, tt.want, ev.Observations[0])
		})
	}
}

func TestOptimalCO2_LateFlower(t *testing.T) {
	tests := []struct {
		co2  float64
		want []Observation
	}{
		{600, []Observation{{0.90, 0.25}}},
		{1000, []Observation{{0.40, 0.60}}},
		{300, nil},
		{1300, nil},
	}

	for _, tt := range tests {
		var ev Evidence
		st := environment.State{CO2: environment.Some(tt.co2), FlowerDays: 50}
		optimalCO2(st, DefaultTuning(), &ev)
		assert.Equal(t, tt.want, ev.Observations, "co2 %v", tt.co2)
		assert.Empty(t, ev.Reasons)
	}
}

func TestOptimalCO2_ActiveGrowth(t *testing.T) {
	tests := []struct {
		co2   float64
		want  Observation
		label string
	}{
		{1200, Observation{0.95, 0.20}, ""},
		{900, Observation{0.85, 0.30}, ""},
		{500, Observation{0.65, 0.45}, ""},
		{700, Observation{0.20, 0.75}, "CO2 Low (700)"},
		{350, Observation{0.20, 0.75}, "CO2 Low (350)"},
		{1600, Observation{0.20, 0.75}, "CO2 High (1600)"},
	}

	for _, tt := range tests {
		var ev Evidence
		st := environment.State{CO2: environment.Some(tt.co2), FlowerDays: 20}
		optimalCO2(st, DefaultTuning(), &ev)
		require.Len(t, ev.Observations, 1)
		assert.Equal(t, tt.want, ev.Observations[0])
		if tt.label == "" {
			assert.Empty(t, ev.Reasons)
		} else {
			assert.Equal(t, []string{tt.label}, labels(ev))
		}
	}
}

func TestMoldConditions(t *testing.T) {
	st := environment.State{
		Temperature:    environment.Some(20),
		Humidity:       environment.Some(65),
		VPD:            environment.Some(0.7),
		Light:          environment.LightOff,
		FlowerDays:     40,
		CirculationFan: environment.SwitchOff,
		Exhaust:        environment.Some(5),
		Humidifier:     environment.Some(0),
		Dehumidifier:   environment.SwitchOn,
	}

	ev := evaluate(MoldRisk, st)
	assert.Equal(t, []string{
		"Late Flower",
		"Temp in danger zone (20)",
		"Lights Off",
		"Night Humidity High (65)",
		"Night VPD Low (0.7)",
		"Circulation Fan Off",
		"Stagnant Air (Exhaust 5/10)",
		"Dehumidifier Ineffective (ON + Hum 65%)",
	}, labels(ev))

	st.FlowerDays = 10
	ev = evaluate(MoldRisk, st)
	assert.Equal(t, []string{"Dehumidifier Ineffective (ON + Hum 65%)"}, labels(ev))
}

func TestMoldConditions_Day(t *testing.T) {
	st := environment.State{
		Humidity:   environment.Some(62),
		VPD:        environment.Some(0.85),
		FlowerDays: 36,
	}
	ev := evaluate(MoldRisk, st)
	assert.Equal(t, []string{"Late Flower", "Day Humidity High (62)", "Day VPD Low (0.85)"}, labels(ev))
}

func TestPostHarvest(t *testing.T) {
	st := environment.State{Temperature: environment.Some(18), Humidity: environment.Some(50)}

	ev := evaluate(Drying, st)
	assert.Equal(t, []Observation{{0.95, 0.10}, {0.95, 0.10}}, ev.Observations)
	assert.Empty(t, ev.Reasons)

	ev = evaluate(Curing, st)
	assert.Equal(t, []Observation{{0.95, 0.10}, {0.10, 0.90}}, ev.Observations)
	assert.Equal(t, []Reason{{Weight: 0.90, Label: "Humidity out of range (50)"}}, ev.Reasons)
}

func TestMissingReadingsContributeNothing(t *testing.T) {
	for _, sig := range []Signal{Stress, MoldRisk, Optimal, Drying, Curing} {
		ev := evaluate(sig, environment.State{})
		assert.Empty(t, ev.Observations, sig)
		assert.Empty(t, ev.Reasons, sig)
	}
}

func TestStressTrends_Priority(t *testing.T) {
	analyzer := &fakeAnalyzer{results: map[string]trend.Result{
		"sensor.vpd": {Trend: trend.Rising, CrossedThreshold: true},
	}}
	st := environment.State{Trends: map[environment.Quantity]environment.TrendIndicator{
		environment.Temperature: {
			Source: "sensor.temp", HasIndicator: true, Rising: environment.SwitchOn, Gradient: 0.2,
			HasStats: true, Change: environment.Some(5),
		},
		environment.Humidity: {Source: "sensor.hum", HasStats: true, Change: environment.Some(1.5)},
		environment.VPD:      {Source: "sensor.vpd"},
	}}

	ev := NewEvaluator(DefaultTuning(), analyzer).Evaluate(context.Background(), Stress, st)

	assert.Equal(t, []Observation{{0.95, 0.15}, {0.85, 0.25}, {0.725, 0.30}}, roundAll(ev.Observations))
	assert.Equal(t, []string{"Temperature rising fast", "Humidity rising", "VPD rising"}, labels(ev))
	require.Len(t, analyzer.calls, 1, "history is only read when no external source is configured")
	assert.Equal(t, analyzeCall{"sensor.vpd", 30 * time.Minute, 1.2}, analyzer.calls[0])
	assert.Equal(t, map[string]string{
		"temperature_trend": "rising",
		"humidity_trend":    "rising",
		"vpd_trend":         "rising",
	}, ev.Trends)
}

func TestStressTrends_IndicatorOffSuppressesFallback(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	st := environment.State{Trends: map[environment.Quantity]environment.TrendIndicator{
		environment.Temperature: {Source: "sensor.temp", HasIndicator: true, Rising: environment.SwitchOff},
	}}

	ev := NewEvaluator(DefaultTuning(), analyzer).Evaluate(context.Background(), Stress, st)
	assert.Empty(t, ev.Observations)
	assert.Empty(t, analyzer.calls)
	assert.Equal(t, "stable", ev.Trends["temperature_trend"])
}

func TestStressTrends_FallbackNeedsCrossing(t *testing.T) {
	analyzer := &fakeAnalyzer{results: map[string]trend.Result{
		"sensor.temp": {Trend: trend.Rising, CrossedThreshold: false},
	}}
	st := environment.State{Trends: map[environment.Quantity]environment.TrendIndicator{
		environment.Temperature: {Source: "sensor.temp"},
	}}

	ev := NewEvaluator(DefaultTuning(), analyzer).Evaluate(context.Background(), Stress, st)
	assert.Empty(t, ev.Observations)
	assert.Equal(t, "rising", ev.Trends["temperature_trend"])
}

func TestMoldTrends(t *testing.T) {
	analyzer := &fakeAnalyzer{results: map[string]trend.Result{
		"sensor.hum": {Trend: trend.Rising},
	}}
	st := environment.State{Trends: map[environment.Quantity]environment.TrendIndicator{
		environment.Humidity: {Source: "sensor.hum"},
		environment.VPD:      {Source: "sensor.vpd", HasIndicator: true, Rising: environment.SwitchOff},
	}}

	ev := NewEvaluator(DefaultTuning(), analyzer).Evaluate(context.Background(), MoldRisk, st)

	assert.Equal(t, []string{"Humidity trend", "VPD falling"}, labels(ev))
	require.Len(t, analyzer.calls, 1)
	assert.Equal(t, 101.0, analyzer.calls[0].threshold)
	assert.Equal(t, "falling", ev.Trends["vpd_trend"])

	st = environment.State{Trends: map[environment.Quantity]environment.TrendIndicator{
		environment.VPD: {HasStats: true, Change: environment.Some(-0.2)},
	}}
	ev = NewEvaluator(DefaultTuning(), nil).Evaluate(context.Background(), MoldRisk, st)
	assert.Equal(t, []Observation{{0.85, 0.25}}, ev.Observations)
}

func TestRanked(t *testing.T) {
	in := []Reason{{0.5, "b"}, {0.9, "a"}, {0.5, "c"}}
	assert.Equal(t, []Reason{{0.9, "a"}, {0.5, "c"}, {0.5, "b"}}, Ranked(in))
	assert.Equal(t, Reason{0.5, "b"}, in[0], "input is not reordered")
}

func TestTuning_Apply(t *testing.T) {
	tuning := DefaultTuning()
	err := tuning.Apply([]byte(`
signals:
  stress:
    threshold: 0.6
observations:
  temp_extreme_heat: {p_true: 0.97, p_false: 0.04}
trends:
  temperature:
    window: 45m
light:
  tolerance: 30m
`))
	require.NoError(t, err)
	assert.Equal(t, SignalTuning{Prior: 0.15, Threshold: 0.6}, tuning.Signal(Stress))
	assert.Equal(t, Observation{0.97, 0.04}, tuning.Obs(ObsTempExtremeHeat))
	assert.Equal(t, 45*time.Minute, tuning.Trend(environment.Temperature).Window)
	assert.Equal(t, 26.0, tuning.Trend(environment.Temperature).Threshold)
	assert.Equal(t, 30*time.Minute, tuning.Light.Tolerance)
	assert.Equal(t, 18.0, tuning.Light.VegDayHours)
}

func TestTuning_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantType ConfigErrorType
	}{
		{"prior above one", "signals:\n  stress:\n    prior: 1.2\n", ErrValidation},
		{"prior zero", "signals:\n  optimal:\n    prior: 0\n", ErrValidation},
		{"threshold negative", "signals:\n  optimal:\n    threshold: -0.1\n", ErrValidation},
		{"zero likelihood", "observations:\n  temp_warm: {p_true: 0, p_false: 0.3}\n", ErrValidation},
		{"unknown observation", "observations:\n  temp_lukewarm: {p_true: 0.5, p_false: 0.3}\n", ErrUnknownKey},
		{"unknown signal", "signals:\n  happiness:\n    prior: 0.5\n", ErrUnknownKey},
		{"day hours", "light:\n  veg_day_hours: 24\n", ErrValidation},
		{"late flower hours", "light:\n  flower_late_day_hours: 25\n", ErrValidation},
		{"misspelled section", "observation:\n  temp_extreme_heat: {p_true: 0.9, p_false: 0.1}\n", ErrUnknownKey},
		{"misspelled signal field", "signals:\n  stress:\n    treshold: 0.9\n", ErrUnknownKey},
		{"misspelled light field", "light:\n  flower_lte_day_hours: 11\n", ErrUnknownKey},
		{"misspelled likelihood", "observations:\n  temp_warm: {p_tru: 0.5, p_false: 0.3}\n", ErrUnknownKey},
		{"not yaml", "signals: [", ErrParsing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DefaultTuning().Apply([]byte(tt.yaml))
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "want *ConfigError, got %v", err)
			assert.Equal(t, tt.wantType, cfgErr.Type)
		})
	}
}

func TestTuning_ApplyFlowerStageHours(t *testing.T) {
	tuning := DefaultTuning()
	require.NoError(t, tuning.Apply([]byte("light:\n  flower_late_day_hours: 11\n")))
	assert.Equal(t, 11.0, tuning.Light.FlowerLateDayHours)
	assert.Equal(t, 0.0, tuning.Light.FlowerEarlyDayHours)
	assert.Equal(t, 12.0, tuning.Light.FlowerDayHours)
}

func TestTuning_ApplyEmpty(t *testing.T) {
	tuning := DefaultTuning()
	require.NoError(t, tuning.Apply(nil))
	assert.Equal(t, DefaultTuning(), tuning)
}

func TestLoadTuning(t *testing.T) {
	tuning, err := LoadTuning("")
	require.NoError(t, err)
	assert.NoError(t, tuning.Validate())

	_, err = LoadTuning("/nonexistent/tuning.yaml")
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func roundAll(obs []Observation) []Observation {
	out := make([]Observation, len(obs))
	for i, o := range obs {
		out[i] = Observation{round3(o.PTrue), round3(o.PFalse)}
	}
	return out
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
