package message

import (
	"time"

	"github.com/google/uuid"
)

// Attachment represents message_attachments. FilePath is the sanitized
// storage key; FileName keeps the name the uploader supplied.
type Attachment struct {
	ID         uuid.UUID
	MessageID  uuid.UUID
	FileName   string
	MimeType   string
	FileSize   int64
	FilePath   string
	UploadedBy uuid.UUID
	CreatedAt  time.Time
}
