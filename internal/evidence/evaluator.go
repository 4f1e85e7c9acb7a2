package evidence

import (
	"context"

	"github.com/saaga0h/canopy/internal/environment"
)

// Evaluator gathers the evidence for a signal from a zone snapshot
type Evaluator struct {
	tuning *Tuning
	trends TrendAnalyzer
}

// NewEvaluator creates an evaluator. trends may be nil, which disables the
// history fallback.
func NewEvaluator(tuning *Tuning, trends TrendAnalyzer) *Evaluator {
	return &Evaluator{tuning: tuning, trends: trends}
}

// Tuning returns the parameters the evaluator was built with
func (e *Evaluator) Tuning() *Tuning {
	return e.tuning
}

// Evaluate returns the evidence for sig. Missing readings contribute nothing.
func (e *Evaluator) Evaluate(ctx context.Context, sig Signal, st environment.State) Evidence {
	var ev Evidence
	t := e.tuning

	switch sig {
	case Stress:
		stressTrends(ctx, st, t, e.trends, &ev)
		temperatureStress(st, t, &ev)
		humidityStress(st, t, &ev)
		vpdStress(st, t, &ev)
		co2Stress(st, t, &ev)
		actuatorStress(st, t, &ev)
	case MoldRisk:
		moldTrends(ctx, st, t, e.trends, &ev)
		moldConditions(st, t, &ev)
	case Optimal:
		optimalTemperature(st, t, &ev)
		optimalVPD(st, t, &ev)
		optimalCO2(st, t, &ev)
		optimalActuators(st, t, &ev)
	case Drying, Curing:
		postHarvest(sig, st, t, &ev)
	}

	return ev
}
