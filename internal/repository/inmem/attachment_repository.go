package inmem

import (
	"context"

	"messaging-core/internal/domain/message"
	"messaging-core/internal/repository"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
)

type AttachmentRepository struct {
	store *Store
	// failNext makes the next Create return the given error. Tests use it to
	// drive the compensation path.
	failNext error
}

func NewAttachmentRepository(store *Store) *AttachmentRepository {
	return &AttachmentRepository{store: store}
}

var _ repository.AttachmentRepository = (*AttachmentRepository)(nil)

// FailNextCreate arranges for the next Create call to fail with err.
func (r *AttachmentRepository) FailNextCreate(err error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.failNext = err
}

func (r *AttachmentRepository) Create(ctx context.Context, a *message.Attachment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	if _, ok := r.store.messages[a.MessageID.String()]; !ok {
		return core_errors.ErrNotFound
	}
	for _, list := range r.store.attachments {
		for _, existing := range list {
			if existing.FilePath == a.FilePath {
				return core_errors.ErrConflict
			}
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = r.store.timestamp()
	key := a.MessageID.String()
	r.store.attachments[key] = append(r.store.attachments[key], *a)
	return nil
}

func (r *AttachmentRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]message.Attachment, error) {
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

func (r *AttachmentRepository) ListByMessageIDs(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]message.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make(map[uuid.UUID][]message.Attachment, len(messageIDs))
	for _, id := range messageIDs {
		// rows are appended in insertion order, which is created_at order
		if list := r.store.attachments[id.String()]; len(list) > 0 {
			out[id] = append([]message.Attachment(nil), list...)
		}
	}
	return out, nil
}
