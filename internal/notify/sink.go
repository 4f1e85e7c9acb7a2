package notify

import "context"

// Sink delivers alerts to one destination
type Sink interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}
