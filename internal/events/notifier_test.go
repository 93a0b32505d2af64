package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverRoutesMessageEvents(t *testing.T) {
	r := NewParticipantChannelResolver()
	sender, recipient, partnerID := uuid.New(), uuid.New(), uuid.New()

	internal := r.ResolveChannels(&MessageNewEvent{
		MessageID:   uuid.New(),
		SenderID:    sender,
		RecipientID: uuid.NullUUID{UUID: recipient, Valid: true},
	})
	assert.Equal(t, []string{UserChannel(recipient), UserChannel(sender)}, internal)

	external := r.ResolveChannels(&MessageNewEvent{
		MessageID: uuid.New(),
		SenderID:  sender,
		PartnerID: uuid.NullUUID{UUID: partnerID, Valid: true},
	})
	assert.Equal(t, []string{UserChannel(sender), PartnerChannel(partnerID)}, external)

	read := r.ResolveChannels(&MessageReadEvent{SenderID: sender, RecipientID: recipient})
	assert.Equal(t, []string{UserChannel(sender), UserChannel(recipient)}, read)

	self := r.ResolveChannels(&MessageNewEvent{
		SenderID:    sender,
		RecipientID: uuid.NullUUID{UUID: sender, Valid: true},
	})
	assert.Equal(t, []string{UserChannel(sender)}, self)
}

func TestNotifierPublishesEnvelope(t *testing.T) {
	ctx := context.Background()
	bus := NewLocalBus()
	defer bus.Close()

	recipient := uuid.New()
	sub, err := bus.Subscribe(ctx, UserChannel(recipient))
	require.NoError(t, err)

	n := NewNotifier(bus, nil, nil, nil)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	event := &MessageNewEvent{
		MessageID:   uuid.New(),
		Kind:        "internal",
		SenderID:    uuid.New(),
		RecipientID: uuid.NullUUID{UUID: recipient, Valid: true},
		Priority:    "normal",
		CreatedAt:   fixed,
	}
	require.NoError(t, n.Notify(ctx, event))

	msg := receive(t, sub)
	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Payload, &env))
	assert.Equal(t, EventTypeMessageCreated, env.EventType)
	assert.Equal(t, AggregateTypeMessage, env.AggregateType)
	assert.Equal(t, event.MessageID.String(), env.AggregateID)
	assert.True(t, fixed.Equal(env.OccurredAt))

	var payload MessageNewEvent
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, event.MessageID, payload.MessageID)
}

type failingBus struct{ LocalBus }

func (*failingBus) Publish(context.Context, string, []byte) error {
	return errors.New("redis down")
}

func TestNotifierReportsFailures(t *testing.T) {
	n := NewNotifier(&failingBus{}, nil, nil, nil)
	err := n.Notify(context.Background(), &MessageReadEvent{SenderID: uuid.New(), RecipientID: uuid.New()})
	assert.Error(t, err)

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.Notify(context.Background(), &MessageReadEvent{}))
}
