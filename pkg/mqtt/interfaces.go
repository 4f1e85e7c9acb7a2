package mqtt

import "context"

// Client is the broker connection used by the agents. Subscriptions survive
// reconnects.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()

	// Subscribe blocks until the broker acknowledges the subscription
	Subscribe(topic string, qos byte, handler MessageHandler) error

	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
}

// MessageHandler receives messages for a subscription
type MessageHandler func(Message)

// Message is one received publish
type Message interface {
	Topic() string
	Payload() []byte

	// Ack acknowledges a QoS 1 or 2 message
	Ack()
}
