package websocket

import (
	"context"
	"encoding/json"

	"messaging-core/internal/events"

	"go.uber.org/zap"
)

// BusBridge forwards every notification channel from the bus into the hub.
type BusBridge struct {
	bus events.Bus
	hub *Hub
	log *zap.Logger
}

func NewBusBridge(bus events.Bus, hub *Hub, log *zap.Logger) *BusBridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &BusBridge{bus: bus, hub: hub, log: log}
}

// Run blocks until ctx ends or the bus closes the subscription.
func (b *BusBridge) Run(ctx context.Context) error {
	sub, err := b.bus.Subscribe(ctx, events.ChannelPattern)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			frame, err := json.Marshal(ServerFrame{Type: FrameEvent, Channel: msg.Topic, Data: msg.Payload})
			if err != nil {
				b.log.Warn("dropping unencodable notification", zap.String("channel", msg.Topic), zap.Error(err))
				continue
			}
			b.hub.Broadcast(msg.Topic, frame)
		}
	}
}
