package message

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindInternal Kind = "internal"
	KindExternal Kind = "external"
)

type ContentType string

const (
	ContentText     ContentType = "text"
	ContentHTML     ContentType = "html"
	ContentMarkdown ContentType = "markdown"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

const DefaultCategory = "general"

// Message represents the messages table
type Message struct {
	ID             uuid.UUID
	Seq            int64 // insertion order, assigned by the store
	Kind           Kind
	SenderID       uuid.UUID
	RecipientID    uuid.NullUUID
	PartnerID      uuid.NullUUID
	Subject        sql.NullString
	Content        string
	ContentType    ContentType
	Priority       Priority
	Category       string
	Status         Status
	IsRead         bool
	ReadAt         sql.NullTime
	DeliveredAt    sql.NullTime
	ThreadID       uuid.NullUUID
	ReplyToID      uuid.NullUUID
	RelatedOrderID sql.NullString
	Tags           []string
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsParticipant reports whether userID sent or receives the message.
func (m Message) IsParticipant(userID uuid.UUID) bool {
	if m.SenderID == userID {
		return true
	}
	return m.RecipientID.Valid && m.RecipientID.UUID == userID
}

// IsRecipient reports whether userID is the addressed recipient.
func (m Message) IsRecipient(userID uuid.UUID) bool {
	return m.RecipientID.Valid && m.RecipientID.UUID == userID
}

func (k Kind) Valid() bool {
	return k == KindInternal || k == KindExternal
}

func (c ContentType) Valid() bool {
	switch c {
	case ContentText, ContentHTML, ContentMarkdown:
		return true
	}
	return false
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// NormalizeTags trims, drops empties and de-duplicates while keeping order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
