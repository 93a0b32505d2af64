package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"messaging-core/internal/domain/message"
	"messaging-core/internal/domain/partner"
	"messaging-core/internal/domain/user"
)

// MessageQuery is the parsed, validated form of a message listing request.
// Zero values mean "no filter" except UserID which always scopes the query.
type MessageQuery struct {
	UserID   uuid.UUID
	Status   message.Status
	Kind     message.Kind
	Priority message.Priority
	Category string
	SenderID uuid.NullUUID
	ThreadID uuid.NullUUID
	Search   string
	Limit    int
	Offset   int
}

type MessageRepository interface {
	// Create inserts m and fills the server assigned fields
	// (Seq, CreatedAt, UpdatedAt, DeliveredAt).
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)

	Query(ctx context.Context, q MessageQuery) ([]message.Message, int64, error)
	ExistsSince(ctx context.Context, q MessageQuery, since time.Time) (bool, error)
	ListThread(ctx context.Context, threadID uuid.UUID) ([]message.Message, error)

	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, id, recipientID uuid.UUID) (bool, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)

	SoftDelete(ctx context.Context, id, senderID uuid.UUID) error
}

type AttachmentRepository interface {
	Create(ctx context.Context, a *message.Attachment) error
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]message.Attachment, error)
	ListByMessageIDs(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]message.Attachment, error)
}

type RelationshipRepository interface {
	// FindActive returns ErrNotFound unless an active relationship links
	// userID to partnerID.
	FindActive(ctx context.Context, userID, partnerID uuid.UUID) (partner.Relationship, error)
}

type IdentityRepository interface {
	GetUsers(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
	GetPartners(ctx context.Context, ids []uuid.UUID) ([]user.Partner, error)
}
