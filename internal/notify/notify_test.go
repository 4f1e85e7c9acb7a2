package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saaga0h/canopy/internal/environment"
	"github.com/saaga0h/canopy/internal/evidence"
	"github.com/saaga0h/canopy/pkg/llm"
	"github.com/saaga0h/canopy/pkg/mqtt"
	"github.com/saaga0h/canopy/pkg/redis"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var t0 = time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)

func TestGate(t *testing.T) {
	g := NewGate(5 * time.Minute)

	_, armed := g.LastSent()
	assert.False(t, armed)

	assert.True(t, g.Allow(t0), "first alert passes")
	assert.False(t, g.Allow(t0.Add(4*time.Minute+59*time.Second)))
	assert.True(t, g.Allow(t0.Add(5*time.Minute)), "cooldown elapsed")

	last, armed := g.LastSent()
	assert.True(t, armed)
	assert.Equal(t, t0.Add(5*time.Minute), last)
}

func TestGate_Arm(t *testing.T) {
	g := NewGate(5 * time.Minute)
	g.Arm(t0)

	assert.False(t, g.Allow(t0.Add(time.Minute)), "armed gate blocks")
	assert.True(t, g.Allow(t0.Add(6*time.Minute)))
}

func TestCompose(t *testing.T) {
	reasons := []evidence.Reason{
		{Weight: 0.80, Label: "Night Temp High (33)"},
		{Weight: 0.98, Label: "Extreme Heat (33)"},
		{Weight: 0.10, Label: "x"},
		{Weight: 0.85, Label: "Dry Air (30%)"},
	}

	got := Compose("High stress detected", reasons, DefaultMessageBudget)
	assert.Equal(t, "High stress detected, Extreme Heat (33), Dry Air (30%)", got,
		"stops at the first reason that does not fit")
}

func TestCompose_Boundary(t *testing.T) {
	base := strings.Repeat("a", 50)

	assert.Equal(t, base, Compose(base, []evidence.Reason{{Weight: 1, Label: strings.Repeat("b", 13)}}, 65))
	assert.Equal(t, base+", "+strings.Repeat("b", 12),
		Compose(base, []evidence.Reason{{Weight: 1, Label: strings.Repeat("b", 12)}}, 65))
}

func TestCompose_CountsCharacters(t *testing.T) {
	base := strings.Repeat("a", 50)
	label := "Temp 27.5°C ±" // 13 characters, 16 bytes

	assert.Equal(t, base, Compose(base, []evidence.Reason{{Weight: 1, Label: label}}, 65))
	// 12 characters fit even though the label is 13 bytes
	assert.Equal(t, base+", Temp 27.55°C", Compose(base, []evidence.Reason{{Weight: 1, Label: "Temp 27.55°C"}}, 65))
}

func TestCompose_TiesByLabelDescending(t *testing.T) {
	reasons := []evidence.Reason{{Weight: 0.9, Label: "a"}, {Weight: 0.9, Label: "b"}}
	assert.Equal(t, "base, b, a", Compose("base", reasons, 65))
	assert.Equal(t, "base", Compose("base", nil, 65))
}

func TestTemplate(t *testing.T) {
	tests := []struct {
		sig       evidence.Signal
		on        bool
		wantTitle string
		wantBase  string
		wantOK    bool
	}{
		{evidence.Stress, true, "Plants Under Stress in Tent A", "High stress detected", true},
		{evidence.Stress, false, "", "", false},
		{evidence.MoldRisk, true, "High Mold Risk in Tent A", "High mold risk detected", true},
		{evidence.MoldRisk, false, "", "", false},
		{evidence.Optimal, false, "Optimal Conditions Lost in Tent A", "Optimal conditions lost", true},
		{evidence.Optimal, true, "", "", false},
		{evidence.Drying, true, "", "", false},
		{evidence.Curing, false, "", "", false},
		{evidence.LightSchedule, false, "", "", false},
	}

	for _, tt := range tests {
		title, base, ok := Template(tt.sig, tt.on, "Tent A")
		assert.Equal(t, tt.wantOK, ok, "%s on=%v", tt.sig, tt.on)
		assert.Equal(t, tt.wantTitle, title)
		assert.Equal(t, tt.wantBase, base)
	}
}

func TestReadings(t *testing.T) {
	st := environment.State{
		Temperature: environment.Some(25.5),
		Humidity:    environment.Some(60),
		Light:       environment.LightOff,
	}
	assert.Equal(t, map[string]string{
		"temperature": "25.5",
		"humidity":    "60",
		"light":       "off",
	}, Readings(st))
}

func TestFitLength(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"fits", "short", "short", true},
		{"exact", "0123456789", "0123456789", true},
		{"truncate at word", "hello world again", "hello...", true},
		{"truncate without space", "abcdefghijklmno", "abcdefghij...", true},
		{"far too long", strings.Repeat("x", 60), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := fitLength(tt.text, 10)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePersonality(t *testing.T) {
	assert.Equal(t, PersonalityStandard, NormalizePersonality(""))
	assert.Equal(t, PersonalityStandard, NormalizePersonality("Standard"))
	assert.Equal(t, PersonalityChill, NormalizePersonality("Chill Stoner"))
	assert.Equal(t, PersonalityStrictCoach, NormalizePersonality("strict_coach"))
	assert.Equal(t, PersonalityPirate, NormalizePersonality(" PIRATE "))
	assert.Equal(t, PersonalityStandard, NormalizePersonality("poet"))
}

func testAlert() Alert {
	a := NewAlert("veg", "Veg Tent", evidence.Stress, true, 0.82,
		"Plants Under Stress in Veg Tent", "High stress detected, Extreme Heat (33)", t0)
	a.Target = "mobile_app_phone"
	a.Personality = "pirate"
	a.Readings = map[string]string{"temperature": "33", "humidity": "40"}
	return a
}

func TestRewriter(t *testing.T) {
	mock := &llm.MockClient{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			return &llm.GenerateResponse{Response: "  Arr, the tent be scorching at 33 degrees!  "}, nil
		},
	}
	r := NewRewriter(mock, "llama3.2:3b", 0, testLogger)

	got := r.Rewrite(context.Background(), testAlert())
	assert.Equal(t, "Arr, the tent be scorching at 33 degrees!", got)

	require.Len(t, mock.Requests, 1)
	req := mock.Requests[0]
	assert.Equal(t, "llama3.2:3b", req.Model)
	assert.Contains(t, req.System, "pirate")
	assert.Contains(t, req.Prompt, "Original alert: High stress detected, Extreme Heat (33)")
	assert.Contains(t, req.Prompt, "humidity: 40, temperature: 33")
	assert.Contains(t, req.Prompt, "Zone: Veg Tent")
	assert.Contains(t, req.Prompt, "under 250 characters")
}

func TestRewriter_FallsBack(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error)
	}{
		{"error", func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			return nil, errors.New("connection refused")
		}},
		{"empty", func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			return &llm.GenerateResponse{Response: "   "}, nil
		}},
		{"too long", func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			return &llm.GenerateResponse{Response: strings.Repeat("word ", 80)}, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRewriter(&llm.MockClient{GenerateFunc: tt.fn}, "m", 250, testLogger)
			a := testAlert()
			assert.Equal(t, a.Message, r.Rewrite(context.Background(), a))
		})
	}
}

func TestRewriter_TruncatesSlightOverflow(t *testing.T) {
	text := strings.Repeat("grow ", 55) // 275 chars
	r := NewRewriter(&llm.MockClient{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			return &llm.GenerateResponse{Response: text}, nil
		},
	}, "m", 250, testLogger)

	got := r.Rewrite(context.Background(), testAlert())
	assert.True(t, strings.HasSuffix(got, "grow..."))
	assert.LessOrEqual(t, len(got), 253)
}

type fakeMQTT struct {
	mu        sync.Mutex
	published map[string][]byte
	retained  map[string]bool
	err       error
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{published: map[string][]byte{}, retained: map[string]bool{}}
}

func (f *fakeMQTT) Connect(ctx context.Context) error { return nil }
func (f *fakeMQTT) Disconnect()                       {}
func (f *fakeMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	return nil
}
func (f *fakeMQTT) IsConnected() bool { return true }
func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published[topic] = payload
	f.retained[topic] = retained
	return nil
}

func TestMQTTSink(t *testing.T) {
	client := newFakeMQTT()
	sink := NewMQTTSink(client)

	require.NoError(t, sink.Send(context.Background(), testAlert()))

	payload, ok := client.published["canopy/alert/veg/stress"]
	require.True(t, ok)
	assert.False(t, client.retained["canopy/alert/veg/stress"])

	var got Alert
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "Plants Under Stress in Veg Tent", got.Title)
	assert.NotEmpty(t, got.ID)

	client.err = errors.New("not connected")
	assert.Error(t, sink.Send(context.Background(), testAlert()))
}

func TestWebhookSink(t *testing.T) {
	var received Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, time.Second, testLogger)
	require.NoError(t, sink.Send(context.Background(), testAlert()))
	assert.Equal(t, "veg", received.Zone)
	assert.Equal(t, evidence.Stress, received.Signal)
}

func TestWebhookSink_ClientErrorDoesNotTrip(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, time.Second, testLogger)
	for i := 0; i < 8; i++ {
		err := sink.Send(context.Background(), testAlert())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 400")
	}
	assert.Equal(t, int32(8), hits.Load())
}

func TestWebhookSink_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, time.Second, testLogger)
	for i := 0; i < 6; i++ {
		assert.Error(t, sink.Send(context.Background(), testAlert()))
	}

	err := sink.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(6), hits.Load(), "open breaker short-circuits")
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSinkWithWriter(w, testLogger)
	a := testAlert()

	require.NoError(t, sink.Send(context.Background(), a))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "veg", string(msg.Key))
	assert.Equal(t, t0, msg.Time)
	assert.Equal(t, []kafka.Header{
		{Key: "signal", Value: []byte("stress")},
		{Key: "alert_id", Value: []byte(a.ID)},
	}, msg.Headers)

	var got Alert
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, a.ID, got.ID)

	w.err = errors.New("leader not available")
	assert.Error(t, sink.Send(context.Background(), a))

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

// fakeRedis implements the list operations used by History
type fakeRedis struct {
	redis.Client
	lists map[string][]string
	ttl   map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{lists: map[string][]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) LPush(ctx context.Context, key string, values ...interface{}) error {
	for _, v := range values {
		f.lists[key] = append([]string{v.(string)}, f.lists[key]...)
	}
	return nil
}

func (f *fakeRedis) LTrim(ctx context.Context, key string, start, stop int64) error {
	l := f.lists[key]
	if stop+1 < int64(len(l)) {
		f.lists[key] = l[start : stop+1]
	}
	return nil
}

func (f *fakeRedis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	l := f.lists[key]
	if stop+1 > int64(len(l)) {
		stop = int64(len(l)) - 1
	}
	if start > stop {
		return nil, nil
	}
	return l[start : stop+1], nil
}

func (f *fakeRedis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	f.ttl[key] = ttl
	return nil
}

func TestHistory(t *testing.T) {
	client := newFakeRedis()
	h := NewHistory(client, 3)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		a := testAlert()
		ids = append(ids, a.ID)
		require.NoError(t, h.Send(ctx, a))
	}
	client.lists["alerts:veg"] = append(client.lists["alerts:veg"], "not json")

	got, err := h.Recent(ctx, "veg", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ids[4], got[0].ID, "newest first")
	assert.Equal(t, ids[2], got[2].ID)
	assert.Equal(t, historyTTL, client.ttl["alerts:veg"])

	got, err = h.Recent(ctx, "veg", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = h.Recent(ctx, "flower", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type recordingSink struct {
	mu     sync.Mutex
	name   string
	alerts []Alert
	err    error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(ctx context.Context, a Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *recordingSink) sent() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.alerts...)
}

func TestDispatcher(t *testing.T) {
	failing := &recordingSink{name: "broken", err: errors.New("unreachable")}
	ok := &recordingSink{name: "ok"}
	rewriter := NewRewriter(&llm.MockClient{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			return &llm.GenerateResponse{Response: "Ahoy, it be hot"}, nil
		},
	}, "m", 250, testLogger)

	d := NewDispatcher(rewriter, []Sink{failing, ok}, time.Second, testLogger)
	d.Dispatch(testAlert())
	d.Wait()

	sent := ok.sent()
	require.Len(t, sent, 1, "a failing sink does not stop the others")
	assert.Equal(t, "Ahoy, it be hot", sent[0].Message)
	assert.Equal(t, "High stress detected, Extreme Heat (33)", sent[0].Original)
}

func TestDispatcher_WithoutRewriter(t *testing.T) {
	sink := &recordingSink{name: "ok"}
	d := NewDispatcher(nil, []Sink{sink}, 0, testLogger)

	d.Dispatch(testAlert())
	d.Dispatch(testAlert())
	d.Wait()

	sent := sink.sent()
	require.Len(t, sent, 2)
	assert.Empty(t, sent[0].Original)
	assert.NotEqual(t, sent[0].ID, sent[1].ID)
}

type fakeDispatcher struct {
	alerts []Alert
}

func (f *fakeDispatcher) Dispatch(a Alert) { f.alerts = append(f.alerts, a) }

func TestNotifier_CooldownCollapsesFlips(t *testing.T) {
	d := &fakeDispatcher{}
	n := NewNotifier(d, 0, "scientific", testLogger)
	gate := NewGate(DefaultCooldown)
	route := Route{Zone: "veg", ZoneName: "Veg Tent", Enabled: true, Target: "mobile_app_phone"}

	change := Change{
		Signal:      evidence.Stress,
		State:       true,
		Probability: 0.91,
		Reasons:     []evidence.Reason{{Weight: 0.98, Label: "Extreme Heat (33)"}},
	}

	a, sent := n.Notify(gate, route, change, t0)
	require.True(t, sent)
	assert.Equal(t, "Plants Under Stress in Veg Tent", a.Title)
	assert.Equal(t, "High stress detected, Extreme Heat (33)", a.Message)
	assert.Equal(t, "scientific", a.Personality)
	assert.Equal(t, "mobile_app_phone", a.Target)

	// flips off and on again two minutes later
	_, sent = n.Notify(gate, route, change, t0.Add(2*time.Minute))
	assert.False(t, sent)
	assert.Len(t, d.alerts, 1)

	_, sent = n.Notify(gate, route, change, t0.Add(6*time.Minute))
	assert.True(t, sent)
	assert.Len(t, d.alerts, 2)
}

func TestNotifier_Skips(t *testing.T) {
	d := &fakeDispatcher{}
	n := NewNotifier(d, 65, "", testLogger)
	route := Route{Zone: "veg", ZoneName: "Veg Tent", Enabled: true, Target: "phone", Personality: "pirate"}

	_, sent := n.Notify(NewGate(DefaultCooldown), route, Change{Signal: evidence.Stress, State: false}, t0)
	assert.False(t, sent, "stress clearing is not alerted")

	disabled := route
	disabled.Enabled = false
	gate := NewGate(DefaultCooldown)
	_, sent = n.Notify(gate, disabled, Change{Signal: evidence.Stress, State: true}, t0)
	assert.False(t, sent)
	_, armed := gate.LastSent()
	assert.False(t, armed, "a skipped zone does not consume the cooldown")

	noTarget := route
	noTarget.Target = ""
	_, sent = n.Notify(NewGate(DefaultCooldown), noTarget, Change{Signal: evidence.MoldRisk, State: true}, t0)
	assert.False(t, sent)

	armedGate := NewGate(DefaultCooldown)
	armedGate.Arm(t0)
	_, sent = n.Notify(armedGate, route, Change{Signal: evidence.Optimal, State: false}, t0.Add(time.Minute))
	assert.False(t, sent, "light switch cooldown")

	a, sent := n.Notify(NewGate(DefaultCooldown), route, Change{Signal: evidence.Optimal, State: false}, t0)
	require.True(t, sent)
	assert.Equal(t, "pirate", a.Personality)
	assert.Equal(t, "Optimal conditions lost", a.Message)
	assert.Len(t, d.alerts, 1)
}
