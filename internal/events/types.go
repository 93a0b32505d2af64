package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types follow the domain.action format.
const (
	EventTypeMessageCreated = "message.created"
	EventTypeMessageRead    = "message.read"
	EventTypeMessageDeleted = "message.deleted"
)

const AggregateTypeMessage = "message"

// Channel prefixes. Subscribers listen with PSUBSCRIBE on these.
const (
	ChannelPrefixUser    = "channel:user:"
	ChannelPrefixPartner = "channel:partner:"
	ChannelPattern       = "channel:*"
)

type Event interface {
	EventType() string
	AggregateID() string
}

type MessageNewEvent struct {
	MessageID   uuid.UUID     `json:"message_id"`
	Kind        string        `json:"kind"`
	SenderID    uuid.UUID     `json:"sender_id"`
	RecipientID uuid.NullUUID `json:"recipient_id"`
	PartnerID   uuid.NullUUID `json:"partner_id"`
	ThreadID    uuid.NullUUID `json:"thread_id"`
	Subject     string        `json:"subject,omitempty"`
	Priority    string        `json:"priority"`
	CreatedAt   time.Time     `json:"created_at"`
}

func (e *MessageNewEvent) EventType() string   { return EventTypeMessageCreated }
func (e *MessageNewEvent) AggregateID() string { return e.MessageID.String() }

type MessageReadEvent struct {
	MessageID   uuid.UUID `json:"message_id"`
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	ReadAt      time.Time `json:"read_at"`
}

func (e *MessageReadEvent) EventType() string   { return EventTypeMessageRead }
func (e *MessageReadEvent) AggregateID() string { return e.MessageID.String() }

type MessageDeletedEvent struct {
	MessageID   uuid.UUID     `json:"message_id"`
	SenderID    uuid.UUID     `json:"sender_id"`
	RecipientID uuid.NullUUID `json:"recipient_id"`
	PartnerID   uuid.NullUUID `json:"partner_id"`
}

func (e *MessageDeletedEvent) EventType() string   { return EventTypeMessageDeleted }
func (e *MessageDeletedEvent) AggregateID() string { return e.MessageID.String() }

func UserChannel(id uuid.UUID) string    { return ChannelPrefixUser + id.String() }
func PartnerChannel(id uuid.UUID) string { return ChannelPrefixPartner + id.String() }
