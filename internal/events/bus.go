package events

import "context"

// Message is a payload delivered on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus is fire-and-forget pub/sub keyed by topic. Subscribers use glob
// patterns such as "channel:user:*". Delivery is best effort; polling stays
// the source of truth.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, patterns ...string) (Subscription, error)
	Close() error
}

type Subscription interface {
	// Channel is closed once the subscription is closed.
	Channel() <-chan Message
	Unsubscribe(ctx context.Context, patterns ...string) error
	Close() error
}
