package events

import (
	"context"
	"errors"
	"path"
	"sync"
)

var ErrBusClosed = errors.New("event bus closed")

const localBufferSize = 64

// LocalBus delivers in process. Slow subscribers lose messages rather than
// block publishers.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[*localSubscription]struct{}
	closed bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[*localSubscription]struct{})}
}

var _ Bus = (*LocalBus)(nil)

func (b *LocalBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for sub := range b.subs {
		sub.deliver(Message{Topic: topic, Payload: payload})
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, patterns ...string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, err
		}
	}
	sub := &localSubscription{
		bus:      b,
		ch:       make(chan Message, localBufferSize),
		patterns: make(map[string]struct{}, len(patterns)),
	}
	for _, p := range patterns {
		sub.patterns[p] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	b.subs[sub] = struct{}{}
	return sub, nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		sub.closeLocked()
	}
	b.subs = nil
	return nil
}

type localSubscription struct {
	bus      *LocalBus
	mu       sync.Mutex
	ch       chan Message
	patterns map[string]struct{}
	closed   bool
}

func (s *localSubscription) Channel() <-chan Message {
	return s.ch
}

func (s *localSubscription) deliver(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.matches(msg.Topic) {
		return
	}
	select {
	case s.ch <- msg:
	default:
	}
}

func (s *localSubscription) matches(topic string) bool {
	for p := range s.patterns {
		if ok, _ := path.Match(p, topic); ok {
			return true
		}
	}
	return false
}

func (s *localSubscription) Unsubscribe(_ context.Context, patterns ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(patterns) == 0 {
		s.patterns = make(map[string]struct{})
		return nil
	}
	for _, p := range patterns {
		delete(s.patterns, p)
	}
	return nil
}

func (s *localSubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.bus.subs != nil {
		delete(s.bus.subs, s)
	}
	s.closeLocked()
	return nil
}

// closeLocked requires the bus lock so no publisher is mid-delivery.
func (s *localSubscription) closeLocked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
