package evidence

import (
	"context"
	"time"

	"github.com/saaga0h/canopy/internal/environment"
	"github.com/saaga0h/canopy/internal/trend"
)

// TrendAnalyzer runs a fallback analysis over stored history
type TrendAnalyzer interface {
	Analyze(ctx context.Context, entityID string, window time.Duration, threshold float64) trend.Result
}

func quantityLabel(q environment.Quantity) string {
	switch q {
	case environment.Temperature:
		return "Temperature"
	case environment.Humidity:
		return "Humidity"
	default:
		return "VPD"
	}
}

func trendKey(q environment.Quantity) string {
	return string(q) + "_trend"
}

// sensitivityObservation scales the fallback trend likelihoods by a 0..1 sensitivity
func sensitivityObservation(s float64) Observation {
	return Observation{PTrue: 0.5 + s*0.45, PFalse: 0.5 - s*0.40}
}

// stressTrends scores rising temperature, humidity and VPD. An external
// indicator takes priority over statistics, which take priority over the
// history analysis.
func stressTrends(ctx context.Context, st environment.State, t *Tuning, analyzer TrendAnalyzer, ev *Evidence) {
	for _, q := range []environment.Quantity{environment.Temperature, environment.Humidity, environment.VPD} {
		key := trendKey(q)
		label := quantityLabel(q)
		ev.setTrend(key, string(trend.Stable))
		ti := st.Trend(q)

		switch {
		case ti.HasIndicator:
			if ti.Rising != environment.SwitchOn {
				continue
			}
			ev.setTrend(key, string(trend.Rising))
			if ti.Gradient > 0.1 {
				ev.Add(t.Obs(ObsTrendFastRise), "%s rising fast", label)
			} else {
				ev.Add(t.Obs(ObsTrendSlowRise), "%s rising", label)
			}

		case ti.HasStats:
			limit := 1.0
			if q == environment.VPD {
				limit = 0.2
			}
			if ti.Change.OK && ti.Change.Value > limit {
				ev.setTrend(key, string(trend.Rising))
				ev.Add(t.Obs(ObsTrendStatsRise), "%s rising", label)
			}

		case ti.Source != "" && analyzer != nil:
			cfg := t.Trend(q)
			result := analyzer.Analyze(ctx, ti.Source, cfg.Window, cfg.Threshold)
			ev.setTrend(key, string(result.Trend))
			if result.Trend == trend.Rising && result.CrossedThreshold {
				ev.Add(sensitivityObservation(cfg.Sensitivity), "%s rising", label)
			}
		}
	}
}

// moldTrends scores rising humidity and falling VPD
func moldTrends(ctx context.Context, st environment.State, t *Tuning, analyzer TrendAnalyzer, ev *Evidence) {
	for _, q := range []environment.Quantity{environment.Humidity, environment.VPD} {
		key := trendKey(q)
		label := quantityLabel(q)
		ev.setTrend(key, string(trend.Stable))
		ti := st.Trend(q)

		risky := trend.Rising
		threshold := 101.0
		if q == environment.VPD {
			risky = trend.Falling
			threshold = -1
		}

		switch {
		case ti.HasIndicator:
			// A VPD indicator reports rising; its off state means VPD is falling
			hit := ti.Rising == environment.SwitchOn
			if q == environment.VPD {
				hit = ti.Rising == environment.SwitchOff
			}
			if hit {
				ev.setTrend(key, string(risky))
				ev.Add(t.Obs(ObsMoldTrendIndicator), "%s %s", label, risky)
			}

		case ti.HasStats:
			if !ti.Change.OK {
				continue
			}
			hit := ti.Change.Value > 1.0
			if q == environment.VPD {
				hit = ti.Change.Value < -0.1
			}
			if hit {
				ev.setTrend(key, string(risky))
				ev.Add(t.Obs(ObsMoldTrendStats), "%s %s", label, risky)
			}

		case ti.Source != "" && analyzer != nil:
			cfg := t.Trend(q)
			result := analyzer.Analyze(ctx, ti.Source, cfg.Window, threshold)
			ev.setTrend(key, string(result.Trend))
			if result.Trend == risky {
				ev.Add(sensitivityObservation(cfg.Sensitivity), "%s trend", label)
			}
		}
	}
}
