package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"messaging-core/internal/domain/message"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, seq, kind, sender_id, recipient_id, partner_id, subject, content,
	content_type, priority, category, status, is_read, read_at, delivered_at,
	thread_id, reply_to_id, related_order_id, tags, COALESCE(metadata, '{}'::jsonb),
	created_at, updated_at`

type PostgresMessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	err := r.db.QueryRow(ctx, `
        INSERT INTO messages (id, kind, sender_id, recipient_id, partner_id, subject, content,
            content_type, priority, category, status, is_read, delivered_at,
            thread_id, reply_to_id, related_order_id, tags, metadata, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false,now(),$12,$13,$14,$15,$16,now(),now())
        RETURNING seq, delivered_at, created_at, updated_at
    `,
		m.ID,
		string(m.Kind),
		m.SenderID,
		m.RecipientID,
		m.PartnerID,
		m.Subject,
		m.Content,
		string(m.ContentType),
		string(m.Priority),
		m.Category,
		string(m.Status),
		m.ThreadID,
		m.ReplyToID,
		m.RelatedOrderID,
		m.Tags,
		m.Metadata,
	).Scan(&m.Seq, &m.DeliveredAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core_errors.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: referenced message does not exist", core_errors.ErrNotFound)
		}
		return err
	}
	m.IsRead = false
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	row := r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return message.Message{}, core_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) Query(ctx context.Context, q MessageQuery) ([]message.Message, int64, error) {
	w := messageScope(q)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := `SELECT ` + messageColumns + ` FROM messages` + w.String() +
		` ORDER BY created_at DESC, seq DESC`
	if q.Limit > 0 {
		sql += ` LIMIT ` + w.next()
		w.args = append(w.args, q.Limit)
	}
	if q.Offset > 0 {
		sql += ` OFFSET ` + w.next()
		w.args = append(w.args, q.Offset)
	}

	rows, err := r.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, 0, err
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *PostgresMessageRepository) ExistsSince(ctx context.Context, q MessageQuery, since time.Time) (bool, error) {
	w := messageScope(q)
	w.add("created_at > ?", since)

	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM messages`+w.String()+`)`, w.args...).Scan(&exists)
	return exists, err
}

func (r *PostgresMessageRepository) ListThread(ctx context.Context, threadID uuid.UUID) ([]message.Message, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE thread_id = $1 AND status <> 'deleted'
        ORDER BY created_at ASC, seq ASC
    `, threadID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func (r *PostgresMessageRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*) FROM messages
        WHERE recipient_id = $1 AND is_read = false AND status <> 'deleted'
    `, recipientID).Scan(&count)
	return count, err
}

// MarkRead flips is_read only for the addressed recipient and only once.
// It reports whether this call performed the transition.
func (r *PostgresMessageRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE messages
        SET is_read = true, status = 'read', read_at = now(), updated_at = now()
        WHERE id = $1 AND recipient_id = $2 AND is_read = false
          AND status IN ('sent', 'delivered')
    `, id, recipientID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresMessageRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE messages
        SET is_read = true, status = 'read', read_at = now(), updated_at = now()
        WHERE recipient_id = $1 AND is_read = false AND status IN ('sent', 'delivered')
    `, recipientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id, senderID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE messages
        SET status = 'deleted', updated_at = now()
        WHERE id = $1 AND sender_id = $2 AND status <> 'deleted'
    `, id, senderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core_errors.ErrNotFound
	}
	return nil
}

func collectMessages(rows pgx.Rows) ([]message.Message, error) {
	defer rows.Close()

	messages := make([]message.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func scanMessage(row pgx.Row) (message.Message, error) {
	var (
		m                                   message.Message
		kind, contentType, priority, status string
	)
	err := row.Scan(
		&m.ID,
		&m.Seq,
		&kind,
		&m.SenderID,
		&m.RecipientID,
		&m.PartnerID,
		&m.Subject,
		&m.Content,
		&contentType,
		&priority,
		&m.Category,
		&status,
		&m.IsRead,
		&m.ReadAt,
		&m.DeliveredAt,
		&m.ThreadID,
		&m.ReplyToID,
		&m.RelatedOrderID,
		&m.Tags,
		&m.Metadata,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return message.Message{}, err
	}
	m.Kind = message.Kind(kind)
	m.ContentType = message.ContentType(contentType)
	m.Priority = message.Priority(priority)
	m.Status = message.Status(status)
	return m, nil
}
