// Package notify decides when a state change becomes an alert, renders it
// and delivers it to the configured sinks.
package notify

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum spacing between alerts of one instance
const DefaultCooldown = 5 * time.Minute

// Gate enforces the cooldown for a single zone/signal instance
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time
	armed    bool
}

// NewGate creates a gate that has never fired
func NewGate(cooldown time.Duration) *Gate {
	return &Gate{cooldown: cooldown}
}

// Allow reports whether an alert may be sent at now and, if so, records it
func (g *Gate) Allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.armed && now.Sub(g.last) < g.cooldown {
		return false
	}
	g.last = now
	g.armed = true
	return true
}

// Arm starts a cooldown period at now without sending anything.
// Used when the lights switch so the transient swing does not alert.
func (g *Gate) Arm(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.last = now
	g.armed = true
}

// LastSent returns the start of the current cooldown period
func (g *Gate) LastSent() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.last, g.armed
}
