package monitor

import (
	"encoding/json"
	"fmt"

	"github.com/saaga0h/canopy/pkg/mqtt"
)

// StatePublisher exposes snapshots to other consumers
type StatePublisher interface {
	PublishState(s *Snapshot) error
}

// MQTTPublisher publishes snapshots as retained messages on
// canopy/state/{zone}/{signal}
type MQTTPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher creates a publisher on an already connected client
func NewMQTTPublisher(client mqtt.Client) *MQTTPublisher {
	return &MQTTPublisher{client: client}
}

func (p *MQTTPublisher) PublishState(s *Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	topic := mqtt.SignalStateTopic(s.Zone, string(s.Signal))
	if err := p.client.Publish(topic, 1, true, payload); err != nil {
		return fmt.Errorf("failed to publish state to %s: %w", topic, err)
	}
	return nil
}
