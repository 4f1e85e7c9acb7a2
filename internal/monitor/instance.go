package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/saaga0h/canopy/internal/environment"
	"github.com/saaga0h/canopy/internal/evidence"
	"github.com/saaga0h/canopy/internal/inference"
	"github.com/saaga0h/canopy/internal/lightcycle"
	"github.com/saaga0h/canopy/internal/notify"
	"github.com/saaga0h/canopy/internal/registry"
)

// pipeline holds the read-only collaborators shared by all instances
type pipeline struct {
	builder   *environment.Builder
	evaluator *evidence.Evaluator
	notifier  *notify.Notifier
	publisher StatePublisher
	schedule  lightcycle.Schedule
	cooldown  time.Duration
	timeout   time.Duration
	now       func() time.Time
}

// Instance evaluates one signal of one zone. All mutable state is owned by
// the worker goroutine running run; other goroutines only read published
// snapshots and send triggers.
type Instance struct {
	signal evidence.Signal
	zone   atomic.Pointer[registry.Zone]
	p      *pipeline
	logger *slog.Logger

	classifier *inference.Classifier
	verifier   *lightcycle.Verifier
	gate       *notify.Gate
	lastLight  environment.LightState

	trigger  chan struct{}
	snapshot atomic.Pointer[Snapshot]
	cancel   context.CancelFunc
}

func newInstance(zone registry.Zone, sig evidence.Signal, p *pipeline, logger *slog.Logger) *Instance {
	inst := &Instance{
		signal:  sig,
		p:       p,
		logger:  logger.With("zone", zone.ID, "signal", string(sig)),
		gate:    notify.NewGate(p.cooldown),
		trigger: make(chan struct{}, 1),
	}
	inst.zone.Store(&zone)

	initial := &Snapshot{
		Zone:     zone.ID,
		ZoneName: zone.DisplayName(),
		Signal:   sig,
		Reasons:  []evidence.Reason{},
	}
	if sig == evidence.LightSchedule {
		inst.verifier = lightcycle.NewVerifier(p.schedule)
	} else {
		tuning := p.evaluator.Tuning().Signal(sig)
		inst.classifier = inference.NewClassifier(tuning.Threshold)
		initial.Probability = tuning.Prior
		initial.Threshold = tuning.Threshold
	}
	inst.snapshot.Store(initial)

	return inst
}

// Signal returns the evaluated signal
func (i *Instance) Signal() evidence.Signal {
	return i.signal
}

// Zone returns the zone configuration currently in use
func (i *Instance) Zone() registry.Zone {
	return *i.zone.Load()
}

func (i *Instance) setZone(z registry.Zone) {
	i.zone.Store(&z)
}

// Snapshot returns the latest published output
func (i *Instance) Snapshot() *Snapshot {
	return i.snapshot.Load()
}

// Trigger requests an evaluation. Requests arriving while one is pending
// are coalesced.
func (i *Instance) Trigger() {
	select {
	case i.trigger <- struct{}{}:
	default:
	}
}

func (i *Instance) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-i.trigger:
			i.evaluate(ctx)
		}
	}
}

func (i *Instance) stop() {
	if i.cancel != nil {
		i.cancel()
	}
}

// evaluate runs one cycle. A failed or timed out cycle leaves the previous
// state in place.
func (i *Instance) evaluate(parent context.Context) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("Evaluation panicked", "panic", r)
		}
	}()

	zone := i.Zone()
	now := i.p.now()

	ctx, cancel := context.WithTimeout(parent, i.p.timeout)
	defer cancel()

	st := i.p.builder.Build(ctx, zone, now)

	var snap *Snapshot
	if i.signal == evidence.LightSchedule {
		if ctx.Err() != nil {
			i.logger.Warn("Evaluation timed out, keeping previous state", "error", ctx.Err())
			return
		}
		snap = i.evaluateLightCycle(zone, st, now)
	} else {
		ev := i.p.evaluator.Evaluate(ctx, i.signal, st)
		if ctx.Err() != nil {
			i.logger.Warn("Evaluation timed out, keeping previous state", "error", ctx.Err())
			return
		}
		snap = i.evaluateBayesian(zone, st, ev, now)
	}

	i.snapshot.Store(snap)

	if i.p.publisher != nil {
		if err := i.p.publisher.PublishState(snap); err != nil {
			i.logger.Warn("Failed to publish state", "error", err)
		}
	}
}

func (i *Instance) evaluateBayesian(zone registry.Zone, st environment.State, ev evidence.Evidence, now time.Time) *Snapshot {
	i.observeLight(st.Light, now)

	tuning := i.p.evaluator.Tuning().Signal(i.signal)
	p := inference.Combine(tuning.Prior, ev.Observations)
	transition := i.classifier.Update(p)
	reasons := evidence.Ranked(ev.Reasons)

	i.logger.Debug("Signal evaluated",
		"probability", p,
		"state", transition.To,
		"observations", len(ev.Observations))

	if transition.Flipped {
		i.logger.Info("Signal state changed",
			"from", transition.From,
			"to", transition.To,
			"probability", p)

		i.p.notifier.Notify(i.gate, routeFor(zone), notify.Change{
			Signal:      i.signal,
			State:       transition.To,
			Probability: p,
			Reasons:     reasons,
			Readings:    notify.Readings(st),
		}, now)
	}

	snap := &Snapshot{
		Zone:        zone.ID,
		ZoneName:    zone.DisplayName(),
		Signal:      i.signal,
		Probability: p,
		State:       transition.To,
		Threshold:   tuning.Threshold,
		Reasons:     reasons,
		Trends:      ev.Trends,
		EvaluatedAt: now,
	}
	if last, ok := i.gate.LastSent(); ok {
		snap.CooldownSince = &last
	}
	return snap
}

// observeLight starts a cooldown when the lights switch so the swing in
// conditions that follows does not alert
func (i *Instance) observeLight(light environment.LightState, now time.Time) {
	if light == environment.LightUnknown {
		return
	}
	if i.lastLight != environment.LightUnknown && i.lastLight != light {
		i.logger.Debug("Light switched, starting notification cooldown", "light", light.String())
		i.gate.Arm(now)
	}
	i.lastLight = light
}

func (i *Instance) evaluateLightCycle(zone registry.Zone, st environment.State, now time.Time) *Snapshot {
	result := i.verifier.Observe(st.Light, st.FlowerDays, now)

	p := 0.0
	if result.Compliant {
		p = 1
	}

	return &Snapshot{
		Zone:        zone.ID,
		ZoneName:    zone.DisplayName(),
		Signal:      i.signal,
		Probability: p,
		State:       result.Compliant,
		Reasons:     []evidence.Reason{},
		LightCycle:  &result,
		EvaluatedAt: now,
	}
}

func routeFor(z registry.Zone) notify.Route {
	return notify.Route{
		Zone:        z.ID,
		ZoneName:    z.DisplayName(),
		Enabled:     z.Notifications.Enabled,
		Target:      z.Notifications.Target,
		Personality: z.Notifications.Personality,
	}
}

// SignalsFor returns the signals evaluated for a zone
func SignalsFor(z registry.Zone) []evidence.Signal {
	switch registry.CanonicalZone(z.ID) {
	case registry.ZoneDry:
		return []evidence.Signal{evidence.Drying, evidence.MoldRisk}
	case registry.ZoneCure:
		return []evidence.Signal{evidence.Curing, evidence.MoldRisk}
	}

	signals := []evidence.Signal{evidence.Stress, evidence.MoldRisk, evidence.Optimal}
	if z.Entities.Light != "" || z.Daylight {
		signals = append(signals, evidence.LightSchedule)
	}
	return signals
}
