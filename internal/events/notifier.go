package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"messaging-core/internal/metrics"

	"go.uber.org/zap"
)

// Notifier turns domain events into envelopes and publishes them on every
// channel the resolver names. A nil Notifier or one without a bus is a no-op.
type Notifier struct {
	bus      Bus
	resolver ChannelResolver
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewNotifier(bus Bus, resolver ChannelResolver, m *metrics.Metrics, log *zap.Logger) *Notifier {
	if resolver == nil {
		resolver = NewParticipantChannelResolver()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{bus: bus, resolver: resolver, metrics: m, log: log, now: time.Now}
}

// Notify publishes event. Failures on one channel do not stop the others;
// all failures are returned joined.
func (n *Notifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.bus == nil {
		return nil
	}
	channels := n.resolver.ResolveChannels(event)
	if len(channels) == 0 {
		return nil
	}

	env, err := NewEnvelope(event, n.now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	var errs []error
	for _, channel := range channels {
		if err := n.bus.Publish(ctx, channel, data); err != nil {
			n.metrics.NotificationFailed()
			n.log.Warn("notification publish failed",
				zap.String("channel", channel),
				zap.String("event_type", env.EventType),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		n.metrics.NotificationPublished()
	}
	return errors.Join(errs...)
}
