// Package inference turns evidence into a posterior and a boolean state.
package inference

import "github.com/saaga0h/canopy/internal/evidence"

// Combine applies naive-Bayes updating to prior. With no observations, or
// when every hypothesis has been ruled out, the prior is returned unchanged.
// The result does not depend on observation order.
func Combine(prior float64, observations []evidence.Observation) float64 {
	if len(observations) == 0 {
		return prior
	}

	pTrue := prior
	pFalse := 1 - prior
	for _, o := range observations {
		pTrue *= o.PTrue
		pFalse *= o.PFalse
	}

	denominator := pTrue + pFalse
	if denominator == 0 {
		return prior
	}
	return clamp(pTrue / denominator)
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
