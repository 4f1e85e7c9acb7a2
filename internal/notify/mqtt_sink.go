package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/saaga0h/canopy/pkg/mqtt"
)

// MQTTSink publishes alerts on canopy/alert/{zone}/{signal}
type MQTTSink struct {
	client mqtt.Client
}

// NewMQTTSink creates a sink on an already connected client
func NewMQTTSink(client mqtt.Client) *MQTTSink {
	return &MQTTSink{client: client}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Send(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	topic := mqtt.AlertTopic(a.Zone, string(a.Signal))
	if err := s.client.Publish(topic, 1, false, payload); err != nil {
		return fmt.Errorf("failed to publish alert to %s: %w", topic, err)
	}
	return nil
}
