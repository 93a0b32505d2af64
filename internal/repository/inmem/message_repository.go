package inmem

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"messaging-core/internal/domain/message"
	"messaging-core/internal/repository"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
)

type MessageRepository struct {
	store *Store
}

func NewMessageRepository(store *Store) repository.MessageRepository {
	return &MessageRepository{store: store}
}

func (r *MessageRepository) Create(ctx context.Context, m *message.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if _, ok := r.store.messages[m.ID.String()]; ok {
		return core_errors.ErrConflict
	}
	if m.ReplyToID.Valid {
		if _, ok := r.store.messages[m.ReplyToID.UUID.String()]; !ok {
			return core_errors.ErrNotFound
		}
	}

	now := r.store.timestamp()
	r.store.seq++
	m.Seq = r.store.seq
	m.IsRead = false
	m.CreatedAt = now
	m.UpdatedAt = now
	m.DeliveredAt.Time, m.DeliveredAt.Valid = now, true
	if m.Tags == nil {
		m.Tags = []string{}
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}

	stored := copyMessage(*m)
	r.store.messages[m.ID.String()] = &stored
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	if err := ctx.Err(); err != nil {
		return message.Message{}, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	m, ok := r.store.messages[id.String()]
	if !ok {
		return message.Message{}, core_errors.ErrNotFound
	}
	return copyMessage(*m), nil
}

func (r *MessageRepository) Query(ctx context.Context, q repository.MessageQuery) ([]message.Message, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched := r.scope(q)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Seq > matched[j].Seq
	})

	total := int64(len(matched))
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

func (r *MessageRepository) ExistsSince(ctx context.Context, q repository.MessageQuery, since time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, m := range r.scope(q) {
		if m.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MessageRepository) ListThread(ctx context.Context, threadID uuid.UUID) ([]message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]message.Message, 0)
	for _, m := range r.store.messages {
		if m.Status == message.StatusDeleted || !m.ThreadID.Valid || m.ThreadID.UUID != threadID {
			continue
		}
		out = append(out, copyMessage(*m))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (r *MessageRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var count int64
	for _, m := range r.store.messages {
		if m.IsRecipient(recipientID) && !m.IsRead && m.Status != message.StatusDeleted {
			count++
		}
	}
	return count, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	m, ok := r.store.messages[id.String()]
	if !ok || !m.IsRecipient(recipientID) {
		return false, nil
	}
	return r.markRead(m), nil
}

func (r *MessageRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var changed int64
	for _, m := range r.store.messages {
		if m.IsRecipient(recipientID) && r.markRead(m) {
			changed++
		}
	}
	return changed, nil
}

// markRead applies the conditional update; callers hold the write lock.
func (r *MessageRepository) markRead(m *message.Message) bool {
	if m.IsRead || m.Status == message.StatusRead || !message.CanTransition(m.Status, message.StatusRead) {
		return false
	}
	now := r.store.timestamp()
	m.IsRead = true
	m.Status = message.StatusRead
	m.ReadAt.Time, m.ReadAt.Valid = now, true
	m.UpdatedAt = now
	return true
}

func (r *MessageRepository) SoftDelete(ctx context.Context, id, senderID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	m, ok := r.store.messages[id.String()]
	if !ok || m.SenderID != senderID || m.Status == message.StatusDeleted {
		return core_errors.ErrNotFound
	}
	m.Status = message.StatusDeleted
	m.UpdatedAt = r.store.timestamp()
	return nil
}

// scope mirrors repository.messageScope; callers hold the read lock.
func (r *MessageRepository) scope(q repository.MessageQuery) []message.Message {
	search := strings.ToLower(q.Search)
	out := make([]message.Message, 0)
	for _, m := range r.store.messages {
		if !m.IsParticipant(q.UserID) || m.Status == message.StatusDeleted {
			continue
		}
		if q.Status != "" && m.Status != q.Status {
			continue
		}
		if q.Kind != "" && m.Kind != q.Kind {
			continue
		}
		if q.Priority != "" && m.Priority != q.Priority {
			continue
		}
		if q.Category != "" && m.Category != q.Category {
			continue
		}
		if q.SenderID.Valid && m.SenderID != q.SenderID.UUID {
			continue
		}
		if q.ThreadID.Valid && (!m.ThreadID.Valid || m.ThreadID.UUID != q.ThreadID.UUID) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(m.Subject.String), search) &&
			!strings.Contains(strings.ToLower(m.Content), search) {
			continue
		}
		out = append(out, copyMessage(*m))
	}
	return out
}

func copyMessage(m message.Message) message.Message {
	m.Tags = slices.Clone(m.Tags)
	m.Metadata = maps.Clone(m.Metadata)
	return m
}
