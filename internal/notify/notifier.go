package notify

import (
	"log/slog"
	"time"

	"github.com/saaga0h/canopy/internal/evidence"
)

// AlertDispatcher accepts alerts for delivery
type AlertDispatcher interface {
	Dispatch(a Alert)
}

// Route is the notification routing of one zone
type Route struct {
	Zone        string
	ZoneName    string
	Enabled     bool
	Target      string
	Personality string
}

// Change is a classifier flip of one instance
type Change struct {
	Signal      evidence.Signal
	State       bool
	Probability float64
	Reasons     []evidence.Reason
	Readings    map[string]string
}

// Notifier turns state changes into dispatched alerts
type Notifier struct {
	dispatcher  AlertDispatcher
	budget      int
	personality string
	logger      *slog.Logger
}

// NewNotifier creates a notifier. personality is used for zones that do not
// set their own.
func NewNotifier(dispatcher AlertDispatcher, budget int, personality string, logger *slog.Logger) *Notifier {
	if budget <= 0 {
		budget = DefaultMessageBudget
	}
	return &Notifier{
		dispatcher:  dispatcher,
		budget:      budget,
		personality: personality,
		logger:      logger,
	}
}

// Notify dispatches an alert for c when the change is alert-worthy, the
// zone has a target and the gate is open. It reports whether an alert left.
func (n *Notifier) Notify(gate *Gate, route Route, c Change, now time.Time) (Alert, bool) {
	title, base, ok := Template(c.Signal, c.State, route.ZoneName)
	if !ok {
		return Alert{}, false
	}

	if !route.Enabled || route.Target == "" {
		n.logger.Debug("Notifications not configured for zone, skipping",
			"zone", route.Zone, "signal", c.Signal)
		return Alert{}, false
	}

	if !gate.Allow(now) {
		n.logger.Debug("Notification cooldown active, skipping",
			"zone", route.Zone, "signal", c.Signal)
		return Alert{}, false
	}

	a := NewAlert(route.Zone, route.ZoneName, c.Signal, c.State, c.Probability,
		title, Compose(base, c.Reasons, n.budget), now)
	a.Target = route.Target
	a.Personality = route.Personality
	if a.Personality == "" {
		a.Personality = n.personality
	}
	a.Readings = c.Readings

	n.dispatcher.Dispatch(a)
	return a, true
}
