// Package monitor runs the per-zone inference instances and keeps them in
// sync with the zone registry.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/saaga0h/canopy/internal/collector"
	"github.com/saaga0h/canopy/internal/environment"
	"github.com/saaga0h/canopy/internal/evidence"
	"github.com/saaga0h/canopy/internal/lightcycle"
	"github.com/saaga0h/canopy/internal/notify"
	"github.com/saaga0h/canopy/internal/registry"
	"github.com/saaga0h/canopy/internal/trend"
	"github.com/saaga0h/canopy/pkg/config"
	"github.com/saaga0h/canopy/pkg/mqtt"
	"github.com/saaga0h/canopy/pkg/redis"
)

// Dependencies are the collaborators of the agent. Source, History,
// Publisher and Clock are optional and default to the Redis stores, MQTT
// retained state and the wall clock.
type Dependencies struct {
	MQTT       mqtt.Client
	Redis      redis.Client
	Registry   registry.Registry
	Tuning     *evidence.Tuning
	Dispatcher notify.AlertDispatcher

	Source    environment.ValueSource
	History   trend.HistoryStore
	Publisher StatePublisher
	Clock     func() time.Time
}

// Agent owns the zone/signal instances
type Agent struct {
	mqtt      mqtt.Client
	redis     redis.Client
	registry  registry.Registry
	cfg       *config.Config
	logger    *slog.Logger
	collector *collector.Agent
	plants    *PlantCache
	pipeline  *pipeline

	dispatcher notify.AlertDispatcher

	mu        sync.RWMutex
	zones     map[string]registry.Zone
	instances map[string]*Instance
	byEntity  map[string][]*Instance
	stopping  bool

	refreshMu sync.Mutex
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewAgent creates a new monitor agent
func NewAgent(deps Dependencies, cfg *config.Config, logger *slog.Logger) *Agent {
	source := deps.Source
	if source == nil {
		source = environment.NewRedisSource(deps.Redis)
	}
	history := deps.History
	if history == nil {
		history = trend.NewRedisHistory(deps.Redis, logger)
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = NewMQTTPublisher(deps.MQTT)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	tuning := deps.Tuning
	if tuning == nil {
		tuning = evidence.DefaultTuning()
	}

	plants := NewPlantCache(deps.Registry)
	analyzer := trend.NewAnalyzer(history, cfg.TrendQueryTimeout, logger)

	a := &Agent{
		mqtt:       deps.MQTT,
		redis:      deps.Redis,
		registry:   deps.Registry,
		cfg:        cfg,
		logger:     logger,
		plants:     plants,
		dispatcher: deps.Dispatcher,
		zones:      make(map[string]registry.Zone),
		instances:  make(map[string]*Instance),
		byEntity:   make(map[string][]*Instance),
		runCtx:     context.Background(),
		cancel:     func() {},
		pipeline: &pipeline{
			builder:   environment.NewBuilder(source, plants, cfg.Latitude, cfg.Longitude, logger),
			evaluator: evidence.NewEvaluator(tuning, analyzer),
			notifier:  notify.NewNotifier(deps.Dispatcher, cfg.NotifyMessageBudget, cfg.Personality, logger),
			publisher: publisher,
			schedule: lightcycle.Schedule{
				VegDayHours:         tuning.Light.VegDayHours,
				FlowerDayHours:      tuning.Light.FlowerDayHours,
				FlowerEarlyDayHours: tuning.Light.FlowerEarlyDayHours,
				FlowerMidDayHours:   tuning.Light.FlowerMidDayHours,
				FlowerLateDayHours:  tuning.Light.FlowerLateDayHours,
				Tolerance:           tuning.Light.Tolerance,
			},
			cooldown: cfg.NotifyCooldown,
			timeout:  cfg.EvaluationTimeout,
			now:      clock,
		},
	}
	a.collector = collector.NewAgent(deps.MQTT, deps.Redis, cfg, a.onEntityUpdate, logger)

	return a
}

// Start connects, loads the registry and runs until ctx is cancelled
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting canopy agent",
		"service_name", a.cfg.ServiceName,
		"mqtt_broker", a.cfg.MQTTAddress(),
		"registry_source", a.cfg.RegistrySource)

	// Connect to MQTT broker
	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// Verify Redis connection
	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.runCtx = ctx

	if err := a.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to load zone registry: %w", err)
	}

	if err := a.collector.Start(ctx); err != nil {
		return fmt.Errorf("failed to start collector: %w", err)
	}

	if err := a.mqtt.Subscribe(mqtt.TopicRegistryChanges, 1, a.handleRegistryMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", mqtt.TopicRegistryChanges, err)
	}
	a.logger.Info("Subscribed to registry changes", "topic", mqtt.TopicRegistryChanges)

	a.startPeriodicLoops(ctx)

	a.logger.Info("Canopy agent started and ready")

	// Block until context is cancelled
	<-ctx.Done()
	a.logger.Info("Canopy agent stopping")

	return nil
}

// Stop waits for the workers to exit and closes the connections
func (a *Agent) Stop() error {
	a.logger.Info("Stopping canopy agent")

	// No goroutine is added to wg once stopping is set
	a.mu.Lock()
	a.stopping = true
	a.cancel()
	for _, inst := range a.instances {
		inst.stop()
	}
	a.mu.Unlock()
	a.wg.Wait()

	// Alerts already dispatched still need the connections
	if w, ok := a.dispatcher.(interface{ Wait() }); ok {
		w.Wait()
	}

	a.mqtt.Disconnect()

	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Canopy agent stopped")
	return nil
}

// startPeriodicLoops re-evaluates every instance and reloads the registry on
// their intervals. Evaluation without new readings keeps time-based checks
// such as the light schedule current.
func (a *Agent) startPeriodicLoops(ctx context.Context) {
	evaluate := time.NewTicker(a.cfg.EvaluationInterval)
	refresh := time.NewTicker(time.Duration(a.cfg.RegistryRefreshSec) * time.Second)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer evaluate.Stop()
		defer refresh.Stop()

		for {
			select {
			case <-evaluate.C:
				a.triggerAll()
			case <-refresh.C:
				if err := a.Refresh(ctx); err != nil {
					a.logger.Warn("Periodic registry refresh failed, keeping current zones", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Refresh reloads zones and plants and reconciles the running instances
func (a *Agent) Refresh(ctx context.Context) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	zones, err := a.registry.Zones(ctx)
	if err != nil {
		return fmt.Errorf("failed to list zones: %w", err)
	}

	if err := a.plants.Refresh(ctx, zones, a.cfg.MaxConcurrentZones); err != nil {
		return err
	}

	a.reconcile(zones)
	return nil
}

func (a *Agent) reconcile(zones []registry.Zone) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopping {
		return
	}

	seen := make(map[string]bool)
	nextZones := make(map[string]registry.Zone, len(zones))
	byEntity := make(map[string][]*Instance)
	added, changed, removed := 0, 0, 0

	for _, z := range zones {
		nextZones[z.ID] = z

		for _, sig := range SignalsFor(z) {
			key := instanceKey(z.ID, sig)
			seen[key] = true

			inst, ok := a.instances[key]
			switch {
			case !ok:
				inst = newInstance(z, sig, a.pipeline, a.logger)
				a.instances[key] = inst
				a.startInstance(inst)
				inst.Trigger()
				added++
			case inst.Zone() != z:
				inst.setZone(z)
				inst.Trigger()
				changed++
			}

			for _, entityID := range z.Entities.All() {
				byEntity[entityID] = append(byEntity[entityID], inst)
			}
		}
	}

	for key, inst := range a.instances {
		if !seen[key] {
			inst.stop()
			delete(a.instances, key)
			removed++
		}
	}

	a.zones = nextZones
	a.byEntity = byEntity

	a.logger.Info("Zone registry reconciled",
		"zones", len(nextZones),
		"instances", len(a.instances),
		"added", added,
		"changed", changed,
		"removed", removed)
}

func (a *Agent) startInstance(inst *Instance) {
	ctx, cancel := context.WithCancel(a.runCtx)
	inst.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		inst.run(ctx)
	}()
}

// onEntityUpdate triggers every instance reading entityID
func (a *Agent) onEntityUpdate(entityID string) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, inst := range a.byEntity[entityID] {
		inst.Trigger()
	}
}

// handleRegistryMessage reloads the registry when a zone record changes
func (a *Agent) handleRegistryMessage(msg mqtt.Message) {
	zoneID := mqtt.LastSegment(msg.Topic())

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopping || a.runCtx.Err() != nil {
		a.logger.Debug("Ignoring registry change while stopping", "zone", zoneID)
		return
	}
	a.logger.Info("Registry change received", "zone", zoneID)

	ctx := a.runCtx
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.Refresh(ctx); err != nil {
			a.logger.Warn("Registry refresh failed, keeping current zones", "zone", zoneID, "error", err)
		}
	}()
}

func (a *Agent) triggerAll() {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, inst := range a.instances {
		inst.Trigger()
	}
}

// Zones returns the monitored zones ordered by id
func (a *Agent) Zones() []registry.Zone {
	a.mu.RLock()
	defer a.mu.RUnlock()

	zones := make([]registry.Zone, 0, len(a.zones))
	for _, z := range a.zones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })
	return zones
}

// Snapshots returns the latest output of every signal of a zone
func (a *Agent) Snapshots(zoneID string) ([]*Snapshot, bool) {
	a.mu.RLock()
	z, ok := a.zones[zoneID]
	a.mu.RUnlock()
	if !ok {
		return nil, false
	}

	var out []*Snapshot
	for _, sig := range SignalsFor(z) {
		if s, ok := a.Snapshot(zoneID, sig); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// Snapshot returns the latest output of one instance
func (a *Agent) Snapshot(zoneID string, sig evidence.Signal) (*Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	inst, ok := a.instances[instanceKey(zoneID, sig)]
	if !ok {
		return nil, false
	}
	return inst.Snapshot(), true
}

// Evaluate requests an evaluation of every signal of a zone. It reports
// false for an unknown zone.
func (a *Agent) Evaluate(zoneID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	z, ok := a.zones[zoneID]
	if !ok {
		return false
	}
	for _, sig := range SignalsFor(z) {
		if inst, ok := a.instances[instanceKey(zoneID, sig)]; ok {
			inst.Trigger()
		}
	}
	return true
}

func instanceKey(zoneID string, sig evidence.Signal) string {
	return zoneID + "/" + string(sig)
}
