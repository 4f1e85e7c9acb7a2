package monitor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/canopy/internal/environment"
	"github.com/saaga0h/canopy/internal/notify"
	"github.com/saaga0h/canopy/internal/registry"
	"github.com/saaga0h/canopy/internal/trend"
	"github.com/saaga0h/canopy/pkg/mqtt"
	"github.com/saaga0h/canopy/pkg/redis"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

var vegZone = registry.Zone{
	ID:   "veg",
	Name: "Veg Tent",
	Entities: registry.Entities{
		Temperature: "sensor.veg_temperature",
		Humidity:    "sensor.veg_humidity",
		Light:       "switch.veg_light",
	},
	Notifications: registry.Notifications{Enabled: true, Target: "mobile_app_phone"},
}

var dryZone = registry.Zone{
	ID:   "drying",
	Name: "Dry Room",
	Entities: registry.Entities{
		Temperature: "sensor.dry_temperature",
		Humidity:    "sensor.dry_humidity",
	},
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeSource struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSource() *fakeSource { return &fakeSource{values: map[string]string{}} }

func (f *fakeSource) Get(ctx context.Context, entityID string) (environment.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[entityID]
	if !ok {
		return environment.Value{}, environment.ErrNotFound
	}
	return environment.Value{State: v}, nil
}

func (f *fakeSource) set(entityID, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[entityID] = state
}

func (f *fakeSource) clear(entityIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range entityIDs {
		delete(f.values, id)
	}
}

func (f *fakeSource) hot() {
	f.set(vegZone.Entities.Temperature, "33")
	f.set(vegZone.Entities.Humidity, "30")
}

func (f *fakeSource) cool() {
	f.clear(vegZone.Entities.Temperature, vegZone.Entities.Humidity)
}

// blockingSource waits for the evaluation deadline on every read
type blockingSource struct{}

func (blockingSource) Get(ctx context.Context, entityID string) (environment.Value, error) {
	<-ctx.Done()
	return environment.Value{}, ctx.Err()
}

type panickingSource struct{}

func (panickingSource) Get(ctx context.Context, entityID string) (environment.Value, error) {
	panic("corrupt value")
}

type emptyHistory struct{}

func (emptyHistory) Samples(ctx context.Context, entityID string, from, to time.Time) ([]trend.Sample, error) {
	return nil, nil
}

type fakeRegistry struct {
	mu     sync.Mutex
	zones  []registry.Zone
	plants map[string][]registry.Plant
	err    error
	calls  int
}

func (r *fakeRegistry) Zones(ctx context.Context) ([]registry.Zone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return append([]registry.Zone(nil), r.zones...), nil
}

func (r *fakeRegistry) Plants(ctx context.Context, zoneID string) ([]registry.Plant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.plants[zoneID], nil
}

func (r *fakeRegistry) setZones(zones ...registry.Zone) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zones = zones
}

func (r *fakeRegistry) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *fakeRegistry) plantCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type recordingDispatcher struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (d *recordingDispatcher) Dispatch(a notify.Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, a)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alerts)
}

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []*Snapshot
	err   error
}

func (p *recordingPublisher) PublishState(s *Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, s)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snaps)
}

type stubMessage struct {
	topic   string
	payload []byte
}

func (m stubMessage) Topic() string   { return m.topic }
func (m stubMessage) Payload() []byte { return m.payload }
func (m stubMessage) Ack()            {}

type fakeMQTT struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	published    map[string][]byte
	retained     map[string]bool
	disconnected bool
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{
		handlers:  map[string]mqtt.MessageHandler{},
		published: map[string][]byte{},
		retained:  map[string]bool{},
	}
}

func (f *fakeMQTT) Connect(ctx context.Context) error { return nil }

func (f *fakeMQTT) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakeMQTT) IsConnected() bool { return true }

func (f *fakeMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = payload
	f.retained[topic] = retained
	return nil
}

func (f *fakeMQTT) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[topic]
	return ok
}

func (f *fakeMQTT) lastPublished(topic string) ([]byte, bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.published[topic]
	return p, f.retained[topic], ok
}

func (f *fakeMQTT) deliver(subscription, topic, payload string) {
	f.mu.Lock()
	handler := f.handlers[subscription]
	f.mu.Unlock()
	handler(stubMessage{topic: topic, payload: []byte(payload)})
}

// fakeRedis accepts the collector writes and connection checks
type fakeRedis struct {
	redis.Client
	mu     sync.Mutex
	closed bool
}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }

func (f *fakeRedis) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRedis) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	return nil
}

func (f *fakeRedis) ZAdd(ctx context.Context, key string, score float64, member interface{}) error {
	return nil
}

func (f *fakeRedis) ZRemRangeByScore(ctx context.Context, key string, min, max string) error {
	return nil
}

func (f *fakeRedis) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	return nil
}

func (f *fakeRedis) ZCard(ctx context.Context, key string) (int64, error) { return 0, nil }

func (f *fakeRedis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}
