package repository

import (
	"context"

	"messaging-core/internal/domain/message"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
)

type PostgresAttachmentRepository struct {
	db DBTX
}

func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &PostgresAttachmentRepository{db: db}
}

func (r *PostgresAttachmentRepository) Create(ctx context.Context, a *message.Attachment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `
        INSERT INTO message_attachments (id, message_id, file_name, mime_type, file_size, file_path, uploaded_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,now())
        RETURNING created_at
    `,
		a.ID,
		a.MessageID,
		a.FileName,
		a.MimeType,
		a.FileSize,
		a.FilePath,
		a.UploadedBy,
	).Scan(&a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core_errors.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return core_errors.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *PostgresAttachmentRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]message.Attachment, error) {
	byMessage, err := r.ListByMessageIDs(ctx, []uuid.UUID{messageID})
	if err != nil {
		return nil, err
	}
	list := byMessage[messageID]
	if list == nil {
		list = []message.Attachment{}
	}
	return list, nil
}

// ListByMessageIDs loads attachments for many messages in one round trip,
// each list ordered by created_at ascending.
func (r *PostgresAttachmentRepository) ListByMessageIDs(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]message.Attachment, error) {
	out := make(map[uuid.UUID][]message.Attachment, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}

	args := uuidArgs(messageIDs)
	rows, err := r.db.Query(ctx, `
        SELECT id, message_id, file_name, mime_type, file_size, file_path, uploaded_by, created_at
        FROM message_attachments
        WHERE message_id IN (`+buildPlaceholders(1, len(args))+`)
        ORDER BY created_at ASC, id ASC
    `, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a message.Attachment
		if err := rows.Scan(
			&a.ID,
			&a.MessageID,
			&a.FileName,
			&a.MimeType,
			&a.FileSize,
			&a.FilePath,
			&a.UploadedBy,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		out[a.MessageID] = append(out[a.MessageID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
