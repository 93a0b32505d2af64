package commands

import (
	"fmt"
	"io"
	"strings"

	"messaging-core/internal/domain/message"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
)

const (
	TypeSendMessage      = "message.send"
	TypeMarkAsRead       = "message.mark_read"
	TypeMarkAllAsRead    = "message.mark_all_read"
	TypeDeleteMessage    = "message.delete"
	TypeUploadAttachment = "message.upload_attachment"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{core_errors.ErrValidation}, args...)...)
}

// AttachmentInput is one file supplied with a send or upload.
type AttachmentInput struct {
	FileName string
	MimeType string
	Size     int64
	Body     io.Reader
}

func (a AttachmentInput) validate() error {
	if strings.TrimSpace(a.FileName) == "" {
		return invalid("attachment file_name is required")
	}
	if a.Body == nil {
		return invalid("attachment %q has no content", a.FileName)
	}
	if a.Size < 0 {
		return invalid("attachment %q has a negative size", a.FileName)
	}
	return nil
}

// SendMessageCommand creates a message. The kind is derived: a partner id
// makes the message external, otherwise it is internal.
type SendMessageCommand struct {
	SenderID       uuid.UUID
	RecipientID    uuid.NullUUID
	PartnerID      uuid.NullUUID
	Subject        string
	Content        string
	ContentType    message.ContentType
	Priority       message.Priority
	Category       string
	ThreadID       uuid.NullUUID
	ReplyToID      uuid.NullUUID
	RelatedOrderID string
	Tags           []string
	Metadata       map[string]any
	Attachments    []AttachmentInput
}

func (SendMessageCommand) CommandType() string {
	return TypeSendMessage
}

func (c SendMessageCommand) Kind() message.Kind {
	if c.PartnerID.Valid {
		return message.KindExternal
	}
	return message.KindInternal
}

func (c SendMessageCommand) Validate() error {
	if c.SenderID == uuid.Nil {
		return invalid("sender_id is required")
	}
	if strings.TrimSpace(c.Content) == "" {
		return invalid("content is required")
	}
	if c.PartnerID.Valid && c.PartnerID.UUID == uuid.Nil {
		return invalid("partner_id is invalid")
	}
	if c.Kind() == message.KindInternal && (!c.RecipientID.Valid || c.RecipientID.UUID == uuid.Nil) {
		return invalid("recipient_id is required for internal messages")
	}
	if c.ContentType != "" && !c.ContentType.Valid() {
		return invalid("unknown content_type %q", c.ContentType)
	}
	if c.Priority != "" && !c.Priority.Valid() {
		return invalid("unknown priority %q", c.Priority)
	}
	for _, a := range c.Attachments {
		if err := a.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Normalized returns a copy with defaults applied and tags de-duplicated.
func (c SendMessageCommand) Normalized() SendMessageCommand {
	if c.ContentType == "" {
		c.ContentType = message.ContentText
	}
	if c.Priority == "" {
		c.Priority = message.PriorityNormal
	}
	c.Category = strings.TrimSpace(c.Category)
	if c.Category == "" {
		c.Category = message.DefaultCategory
	}
	c.Tags = message.NormalizeTags(c.Tags)
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	return c
}

type MarkAsReadCommand struct {
	MessageID uuid.UUID
	UserID    uuid.UUID
}

func (MarkAsReadCommand) CommandType() string {
	return TypeMarkAsRead
}

func (c MarkAsReadCommand) Validate() error {
	if c.MessageID == uuid.Nil {
		return invalid("message id is required")
	}
	if c.UserID == uuid.Nil {
		return invalid("user id is required")
	}
	return nil
}

type MarkAllAsReadCommand struct {
	UserID uuid.UUID
}

func (MarkAllAsReadCommand) CommandType() string {
	return TypeMarkAllAsRead
}

func (c MarkAllAsReadCommand) Validate() error {
	if c.UserID == uuid.Nil {
		return invalid("user id is required")
	}
	return nil
}

type DeleteMessageCommand struct {
	MessageID uuid.UUID
	UserID    uuid.UUID
}

func (DeleteMessageCommand) CommandType() string {
	return TypeDeleteMessage
}

func (c DeleteMessageCommand) Validate() error {
	if c.MessageID == uuid.Nil || c.UserID == uuid.Nil {
		return invalid("message id and user id are required")
	}
	return nil
}

type UploadAttachmentCommand struct {
	MessageID  uuid.UUID
	UploaderID uuid.UUID
	File       AttachmentInput
}

func (UploadAttachmentCommand) CommandType() string {
	return TypeUploadAttachment
}

func (c UploadAttachmentCommand) Validate() error {
	if c.MessageID == uuid.Nil || c.UploaderID == uuid.Nil {
		return invalid("message id and uploader id are required")
	}
	return c.File.validate()
}
