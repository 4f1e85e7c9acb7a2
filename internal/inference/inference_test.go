package inference

import (
	"math/rand"
	"testing"

	"github.com/saaga0h/canopy/internal/evidence"
	"github.com/stretchr/testify/assert"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		name  string
		prior float64
		obs   []evidence.Observation
		want  float64
	}{
		{"no observations", 0.15, nil, 0.15},
		{"single observation", 0.5, []evidence.Observation{{PTrue: 0.9, PFalse: 0.1}}, 0.9},
		{"uninformative", 0.3, []evidence.Observation{{PTrue: 0.5, PFalse: 0.5}}, 0.3},
		{
			"two observations",
			0.15,
			[]evidence.Observation{{PTrue: 0.98, PFalse: 0.05}, {PTrue: 0.85, PFalse: 0.20}},
			(0.15 * 0.98 * 0.85) / (0.15*0.98*0.85 + 0.85*0.05*0.20),
		},
		{"prior one", 1, []evidence.Observation{{PTrue: 0.1, PFalse: 0.9}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Combine(tt.prior, tt.obs)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestCombine_ZeroDenominatorReturnsPrior(t *testing.T) {
	// Underflow drives both products to zero
	obs := make([]evidence.Observation, 2000)
	for i := range obs {
		obs[i] = evidence.Observation{PTrue: 1e-3, PFalse: 1e-3}
	}
	assert.Equal(t, 0.4, Combine(0.4, obs))
}

func TestCombine_OrderIndependent(t *testing.T) {
	obs := []evidence.Observation{
		{PTrue: 0.95, PFalse: 0.20},
		{PTrue: 0.25, PFalse: 0.70},
		{PTrue: 0.85, PFalse: 0.30},
		{PTrue: 0.40, PFalse: 0.70},
		{PTrue: 0.99, PFalse: 0.01},
	}
	want := Combine(0.4, obs)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]evidence.Observation(nil), obs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.InDelta(t, want, Combine(0.4, shuffled), 1e-12)
	}
}

func TestClassifier(t *testing.T) {
	c := NewClassifier(0.70)
	assert.False(t, c.State(), "initial state is false")

	steps := []struct {
		p    float64
		want Transition
	}{
		{0.50, Transition{From: false, To: false}},
		{0.70, Transition{From: false, To: true, Flipped: true}},
		{0.95, Transition{From: true, To: true}},
		{0.69, Transition{From: true, To: false, Flipped: true}},
		{0.10, Transition{From: false, To: false}},
	}

	for i, s := range steps {
		got := c.Update(s.p)
		if got != s.want {
			t.Errorf("step %d: Update(%v) = %+v, want %+v", i, s.p, got, s.want)
		}
	}

	assert.True(t, Transition{From: false, To: true, Flipped: true}.Rose())
	assert.True(t, Transition{From: true, To: false, Flipped: true}.Fell())
	assert.False(t, Transition{From: true, To: true}.Rose())
}
