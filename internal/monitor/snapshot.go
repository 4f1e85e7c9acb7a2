package monitor

import (
	"time"

	"github.com/saaga0h/canopy/internal/evidence"
	"github.com/saaga0h/canopy/internal/lightcycle"
)

// Snapshot is the published output of one zone/signal instance. A published
// snapshot is never modified.
type Snapshot struct {
	Zone          string             `json:"zone"`
	ZoneName      string             `json:"zone_name"`
	Signal        evidence.Signal    `json:"signal"`
	Probability   float64            `json:"probability"`
	State         bool               `json:"state"`
	Threshold     float64            `json:"threshold,omitempty"`
	Reasons       []evidence.Reason  `json:"reasons"`
	Trends        map[string]string  `json:"trends,omitempty"`
	LightCycle    *lightcycle.Result `json:"light_cycle,omitempty"`
	CooldownSince *time.Time         `json:"cooldown_since,omitempty"`
	EvaluatedAt   time.Time          `json:"evaluated_at"`
}

// Evaluated reports whether the instance has completed an evaluation
func (s *Snapshot) Evaluated() bool {
	return !s.EvaluatedAt.IsZero()
}
