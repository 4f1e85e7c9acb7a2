package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/canopy/pkg/mqtt"
)

// MQTTPlayer publishes entity readings the way the home automation bridge
// does
type MQTTPlayer struct {
	client mqtt.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewMQTTPlayer creates a player on an unconnected client
func NewMQTTPlayer(client mqtt.Client, logger *slog.Logger) *MQTTPlayer {
	return &MQTTPlayer{client: client, logger: logger, now: time.Now}
}

// Connect connects the underlying client
func (p *MQTTPlayer) Connect(ctx context.Context) error {
	if err := p.client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect player: %w", err)
	}
	return nil
}

// PublishReading publishes an entity state on its raw topic
func (p *MQTTPlayer) PublishReading(entityID, state string, attributes map[string]interface{}) error {
	payload := map[string]interface{}{
		"state":     state,
		"timestamp": p.now().UTC().Format(time.RFC3339),
	}
	if len(attributes) > 0 {
		payload["attributes"] = attributes
	}
	return p.publish(mqtt.RawEntityTopic(entityID), payload)
}

// PublishRegistryChange announces that a zone record changed
func (p *MQTTPlayer) PublishRegistryChange(zone string) error {
	return p.publish(mqtt.RegistryTopic(zone), map[string]interface{}{
		"zone":       zone,
		"changed_at": p.now().UTC().Format(time.RFC3339),
	})
}

func (p *MQTTPlayer) publish(topic string, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	// QoS 1 so readings are not lost between player and agent
	if err := p.client.Publish(topic, 1, false, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.Debug("Published", "topic", topic, "payload", string(data))
	return nil
}

// Close disconnects the player
func (p *MQTTPlayer) Close() {
	p.client.Disconnect()
}
