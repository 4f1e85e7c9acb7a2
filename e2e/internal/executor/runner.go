package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/saaga0h/canopy/e2e/internal/checker"
	"github.com/saaga0h/canopy/e2e/internal/observer"
	"github.com/saaga0h/canopy/e2e/internal/reporter"
	"github.com/saaga0h/canopy/e2e/internal/scenario"
	"github.com/saaga0h/canopy/pkg/redis"
)

// Player publishes scenario input
type Player interface {
	PublishReading(entityID, state string, attributes map[string]interface{}) error
	PublishRegistryChange(zone string) error
}

// Capture records agent output
type Capture interface {
	Messages() []observer.CapturedMessage
}

// step kinds, in the order they run when offsets tie
const (
	stepEvent = iota
	stepWait
	stepCheck
)

type step struct {
	at    time.Duration
	kind  int
	event scenario.SensorEvent
	wait  scenario.WaitPeriod
	layer string
	exp   scenario.Expectation
}

// Runner executes scenarios against a running agent
type Runner struct {
	player  Player
	capture Capture
	redis   redis.Client // optional; redis expectations fail without it
	logger  *slog.Logger
}

// NewRunner creates a runner over connected collaborators
func NewRunner(player Player, capture Capture, redisClient redis.Client, logger *slog.Logger) *Runner {
	return &Runner{
		player:  player,
		capture: capture,
		redis:   redisClient,
		logger:  logger,
	}
}

// Run replays s and checks its expectations. The returned error covers
// execution failures only; failed expectations are reported in the result.
func (r *Runner) Run(ctx context.Context, s *scenario.Scenario) (*scenario.TestResult, []reporter.TimelineEvent, error) {
	r.logger.Info("Starting scenario", "name", s.Name, "zone", s.Setup.Zone, "duration", s.Duration())

	if err := r.publishInitialState(ctx, s.Setup); err != nil {
		return nil, nil, err
	}

	startTime := time.Now()
	var (
		timeline []reporter.TimelineEvent
		results  []scenario.ExpectationResult
	)

	for _, st := range buildSteps(s) {
		if err := WaitUntil(ctx, startTime, st.at); err != nil {
			return nil, nil, fmt.Errorf("scenario interrupted: %w", err)
		}
		elapsed := time.Since(startTime)

		switch st.kind {
		case stepEvent:
			desc, err := r.playEvent(st.event)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to publish event at %s: %w", st.at, err)
			}
			timeline = append(timeline, reporter.TimelineEvent{Elapsed: elapsed, Layer: st.event.Kind(), Description: desc})

		case stepWait:
			r.logger.Info("Waiting", "elapsed", elapsed, "description", st.wait.Description)
			timeline = append(timeline, reporter.TimelineEvent{Elapsed: elapsed, Layer: "wait", Description: st.wait.Description})

		case stepCheck:
			res := r.check(ctx, st.layer, st.exp)
			results = append(results, res)
			if res.Passed {
				r.logger.Info("Expectation passed", "layer", st.layer, "target", st.exp.Target())
			} else {
				r.logger.Warn("Expectation failed", "layer", st.layer, "target", st.exp.Target(), "reason", res.Reason)
			}
			timeline = append(timeline, reporter.TimelineEvent{
				Elapsed:     elapsed,
				Layer:       st.layer,
				Description: st.exp.Target(),
				IsCheck:     true,
				Success:     res.Passed,
			})
		}
	}

	result := &scenario.TestResult{
		Scenario:     s,
		StartTime:    startTime,
		EndTime:      time.Now(),
		Expectations: results,
	}
	for _, res := range results {
		if res.Passed {
			result.PassedCount++
		} else {
			result.FailedCount++
		}
	}
	result.Passed = result.FailedCount == 0

	return result, timeline, nil
}

func (r *Runner) publishInitialState(ctx context.Context, setup scenario.SetupConfig) error {
	if len(setup.InitialState) == 0 {
		return nil
	}

	entities := make([]string, 0, len(setup.InitialState))
	for id := range setup.InitialState {
		entities = append(entities, id)
	}
	sort.Strings(entities)

	for _, id := range entities {
		if err := r.player.PublishReading(id, setup.InitialState[id], nil); err != nil {
			return fmt.Errorf("failed to publish initial state of %s: %w", id, err)
		}
	}
	r.logger.Info("Published initial state", "entities", len(entities), "settle", setup.Settle)

	if err := WaitUntil(ctx, time.Now(), setup.Settle); err != nil {
		return fmt.Errorf("scenario interrupted: %w", err)
	}
	return nil
}

func (r *Runner) playEvent(e scenario.SensorEvent) (string, error) {
	if e.Kind() == "registry" {
		desc := fmt.Sprintf("registry change %s (%s)", e.Registry, e.Description)
		r.logger.Info("Publishing event", "description", desc)
		return desc, r.player.PublishRegistryChange(e.Registry)
	}

	desc := fmt.Sprintf("%s = %s (%s)", e.Entity, e.State, e.Description)
	r.logger.Info("Publishing event", "description", desc)
	return desc, r.player.PublishReading(e.Entity, e.State, e.Attributes)
}

func (r *Runner) check(ctx context.Context, layer string, exp scenario.Expectation) scenario.ExpectationResult {
	res := scenario.ExpectationResult{Layer: layer, Expectation: exp}

	if exp.RedisKey != "" {
		if r.redis == nil {
			res.Reason = "redis checks are not configured"
			return res
		}
		res.Passed, res.Reason, res.ActualPayload = checker.CheckRedisExpectation(ctx, r.redis, exp)
		return res
	}

	res.Passed, res.Reason, res.ActualPayload = checker.CheckExpectation(exp, r.capture.Messages())
	return res
}

// buildSteps merges events, waits and checks into one timeline. Checks of
// different layers at the same offset run in layer name order.
func buildSteps(s *scenario.Scenario) []step {
	var steps []step
	for _, e := range s.Events {
		steps = append(steps, step{at: e.At, kind: stepEvent, event: e})
	}
	for _, w := range s.Wait {
		steps = append(steps, step{at: w.At, kind: stepWait, wait: w})
	}
	for layer, exps := range s.Expectations {
		for _, exp := range exps {
			steps = append(steps, step{at: exp.At, kind: stepCheck, layer: layer, exp: exp})
		}
	}

	sort.SliceStable(steps, func(i, j int) bool {
		a, b := steps[i], steps[j]
		if a.at != b.at {
			return a.at < b.at
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		return a.layer < b.layer
	})
	return steps
}
