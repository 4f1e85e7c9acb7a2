package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/canopy/pkg/mqtt"
)

// TopicAll matches everything the agent consumes and produces
const TopicAll = "canopy/#"

// CapturedMessage is one MQTT message seen during a run
type CapturedMessage struct {
	Timestamp time.Time   `json:"timestamp"`
	Elapsed   float64     `json:"elapsed"`
	Topic     string      `json:"topic"`
	Payload   interface{} `json:"payload"`
}

// Observer records canopy MQTT traffic for later checks
type Observer struct {
	client mqtt.Client
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	messages  []CapturedMessage
	startTime time.Time
}

// NewObserver creates an observer on an unconnected client
func NewObserver(client mqtt.Client, logger *slog.Logger) *Observer {
	return &Observer{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Start connects and subscribes to all canopy topics
func (o *Observer) Start(ctx context.Context) error {
	o.mu.Lock()
	o.startTime = o.now()
	o.mu.Unlock()

	if err := o.client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect observer: %w", err)
	}
	if err := o.client.Subscribe(TopicAll, 0, o.handle); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TopicAll, err)
	}

	o.logger.Info("Observer subscribed", "topic", TopicAll)
	return nil
}

func (o *Observer) handle(msg mqtt.Message) {
	// Non-JSON payloads are kept as text
	var payload interface{}
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		payload = string(msg.Payload())
	}

	now := o.now()

	o.mu.Lock()
	captured := CapturedMessage{
		Timestamp: now,
		Elapsed:   now.Sub(o.startTime).Seconds(),
		Topic:     msg.Topic(),
		Payload:   payload,
	}
	o.messages = append(o.messages, captured)
	o.mu.Unlock()

	o.logger.Debug("Captured message", "elapsed", captured.Elapsed, "topic", captured.Topic)
}

// Messages returns a copy of everything captured so far
func (o *Observer) Messages() []CapturedMessage {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]CapturedMessage, len(o.messages))
	copy(out, o.messages)
	return out
}

// Count returns the number of captured messages
func (o *Observer) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.messages)
}

// SaveCapture writes the capture as indented JSON
func (o *Observer) SaveCapture(path string) error {
	data, err := json.MarshalIndent(o.Messages(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}
	if err := saveToFile(path, data); err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}

	o.logger.Info("Saved capture", "messages", o.Count(), "file", path)
	return nil
}

// Stop disconnects the observer
func (o *Observer) Stop() {
	o.client.Disconnect()
}
