package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/saaga0h/canopy/pkg/config"
	"github.com/saaga0h/canopy/pkg/mqtt"
	"github.com/saaga0h/canopy/pkg/redis"
)

const storeTimeout = 5 * time.Second

// Listener is notified after an entity update has been stored
type Listener func(entityID string)

// Agent receives raw entity updates and stores them in Redis. It does not
// own the MQTT or Redis connections; the caller connects and closes them.
type Agent struct {
	mqtt      mqtt.Client
	processor *Processor
	storage   *Storage
	listener  Listener
	cfg       *config.Config
	logger    *slog.Logger
}

// NewAgent creates a new collector with the given dependencies. listener
// may be nil.
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, cfg *config.Config, listener Listener, logger *slog.Logger) *Agent {
	return &Agent{
		mqtt:      mqttClient,
		processor: NewProcessor(logger),
		storage:   NewStorage(redisClient, cfg, logger),
		listener:  listener,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start subscribes to the sensor topics
func (a *Agent) Start(ctx context.Context) error {
	subscribed := 0
	for _, topic := range a.cfg.SensorTopics {
		if err := a.mqtt.Subscribe(topic, 0, a.handleMessage); err != nil {
			a.logger.Error("Failed to subscribe to topic", "topic", topic, "error", err)
			// Continue subscribing to other topics even if one fails
			continue
		}
		subscribed++
	}

	if subscribed == 0 && len(a.cfg.SensorTopics) > 0 {
		return fmt.Errorf("failed to subscribe to any sensor topic")
	}

	a.logger.Info("Collector ready to receive messages",
		"subscribed_topics", strings.Join(a.cfg.SensorTopics, ", "))
	return nil
}

// handleMessage processes incoming MQTT messages
func (a *Agent) handleMessage(msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	a.logger.Debug("Received MQTT message", "topic", topic, "size", len(payload))

	entityMsg, err := a.processor.ParseMessage(topic, payload)
	if err != nil {
		a.logger.Error("Failed to parse message", "topic", topic, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := a.storage.StoreEntityData(ctx, entityMsg, a.processor); err != nil {
		a.logger.Error("Failed to store entity data",
			"entity_id", entityMsg.EntityID,
			"error", err)
		// Notify anyway; the evaluation reads whatever is stored
	}

	if a.listener != nil {
		a.listener(entityMsg.EntityID)
	}
}
