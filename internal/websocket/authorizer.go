package websocket

import (
	"context"
	"strings"

	"messaging-core/internal/events"
	"messaging-core/internal/proxy"

	"github.com/google/uuid"
)

// ChannelAuthorizer handles authorization for WebSocket channel subscriptions
type ChannelAuthorizer struct {
	gate proxy.RelationshipGate
}

func NewChannelAuthorizer(gate proxy.RelationshipGate) *ChannelAuthorizer {
	return &ChannelAuthorizer{gate: gate}
}

// CanSubscribe allows a user's own channel and the channels of partners the
// user has an active relationship with. Everything else is denied.
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID uuid.UUID, channel string) bool {
	if userID == uuid.Nil {
		return false
	}

	if channel == events.UserChannel(userID) {
		return true
	}

	if strings.HasPrefix(channel, events.ChannelPrefixPartner) {
		partnerID, err := uuid.Parse(strings.TrimPrefix(channel, events.ChannelPrefixPartner))
		if err != nil {
			return false
		}
		if a == nil || a.gate == nil {
			return false
		}
		return a.gate.IsActive(ctx, userID, partnerID)
	}

	// Default deny
	return false
}
