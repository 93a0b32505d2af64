package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus implements Bus using Redis Pub/Sub. Subscriptions use PSUBSCRIBE
// so patterns like "channel:*" work across instances.
type RedisBus struct {
	client *redis.Client
	log    *zap.Logger

	mu   sync.Mutex
	subs map[*redisSubscription]struct{}
}

func NewRedisBus(client *redis.Client, log *zap.Logger) *RedisBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBus{client: client, log: log, subs: make(map[*redisSubscription]struct{})}
}

var _ Bus = (*RedisBus)(nil)

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, patterns ...string) (Subscription, error) {
	pubsub := b.client.PSubscribe(ctx, patterns...)
	// wait for the subscription confirmation so messages published right
	// after Subscribe returns are not missed
	if len(patterns) > 0 {
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return nil, fmt.Errorf("psubscribe: %w", err)
		}
	}

	sub := &redisSubscription{
		bus:    b,
		pubsub: pubsub,
		ch:     make(chan Message, localBufferSize),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.forward()
	return sub, nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	subs := make([]*redisSubscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	return nil
}

type redisSubscription struct {
	bus    *RedisBus
	pubsub *redis.PubSub
	ch     chan Message
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) Channel() <-chan Message {
	return s.ch
}

func (s *redisSubscription) forward() {
	defer close(s.ch)
	in := s.pubsub.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.ch <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
			case <-s.done:
				return
			default:
				s.bus.log.Warn("subscriber buffer full, dropping message", zap.String("topic", msg.Channel))
			}
		}
	}
}

func (s *redisSubscription) Unsubscribe(ctx context.Context, patterns ...string) error {
	return s.pubsub.PUnsubscribe(ctx, patterns...)
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
	return err
}
