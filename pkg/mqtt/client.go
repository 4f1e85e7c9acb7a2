package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/saaga0h/canopy/pkg/config"
)

const (
	disconnectQuiesceMs = 250
	resubscribeTimeout  = 10 * time.Second
)

type subscription struct {
	qos     byte
	handler pahomqtt.MessageHandler
}

// pahoClient is the Paho-backed Client. Subscriptions are remembered and
// replayed on every (re)connect, since the broker forgets them with a
// clean session.
type pahoClient struct {
	client pahomqtt.Client
	broker string
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient creates an MQTT client for the broker in cfg
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	c := &pahoClient{
		broker: cfg.MQTTAddress(),
		logger: logger,
		subs:   make(map[string]subscription),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.broker)

	clientID := cfg.MQTTClientID
	if clientID == "" {
		clientID = fmt.Sprintf("%s-%d", cfg.ServiceName, time.Now().Unix())
	}
	opts.SetClientID(clientID)

	if cfg.MQTTUser != "" {
		opts.SetUsername(cfg.MQTTUser)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "broker", c.broker, "error", err)
	}
	opts.OnReconnecting = func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		logger.Info("MQTT reconnecting", "broker", c.broker)
	}

	c.client = pahomqtt.NewClient(opts)
	return c
}

func (c *pahoClient) onConnect(pahomqtt.Client) {
	c.logger.Info("Connected to MQTT broker", "broker", c.broker)
	go c.resubscribe()
}

// resubscribe restores every remembered subscription. A first connect
// has nothing to restore.
func (c *pahoClient) resubscribe() {
	c.mu.Lock()
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	c.mu.Unlock()
	sort.Strings(topics)

	for _, topic := range topics {
		c.mu.Lock()
		s, ok := c.subs[topic]
		c.mu.Unlock()
		if !ok {
			continue
		}

		token := c.client.Subscribe(topic, s.qos, s.handler)
		if !token.WaitTimeout(resubscribeTimeout) {
			c.logger.Error("Timed out restoring MQTT subscription", "topic", topic)
			continue
		}
		if err := token.Error(); err != nil {
			c.logger.Error("Failed to restore MQTT subscription", "topic", topic, "error", err)
			continue
		}
		c.logger.Info("Restored MQTT subscription", "topic", topic)
	}
}

// Connect blocks until the broker accepts the connection or ctx ends
func (c *pahoClient) Connect(ctx context.Context) error {
	c.logger.Info("Connecting to MQTT broker", "broker", c.broker)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection timeout: %w", ctx.Err())
	}
}

func (c *pahoClient) Disconnect() {
	c.logger.Info("Disconnecting from MQTT broker", "broker", c.broker)
	c.client.Disconnect(disconnectQuiesceMs)
}

// Subscribe registers handler for topic and remembers it for reconnects
func (c *pahoClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	wrapped := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(message{msg})
	}

	token := c.client.Subscribe(topic, qos, wrapped)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: wrapped}
	c.mu.Unlock()

	c.logger.Info("Subscribed to MQTT topic", "topic", topic, "qos", qos)
	return nil
}

func (c *pahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	c.logger.Debug("Published message", "topic", topic, "size", len(payload), "retained", retained)
	return nil
}

func (c *pahoClient) IsConnected() bool {
	return c.client.IsConnected()
}

type message struct {
	msg pahomqtt.Message
}

func (m message) Topic() string   { return m.msg.Topic() }
func (m message) Payload() []byte { return m.msg.Payload() }
func (m message) Ack()            { m.msg.Ack() }
