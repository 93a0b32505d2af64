package inmem

import (
	"context"
	"testing"
	"time"

	"messaging-core/internal/domain/message"
	"messaging-core/internal/repository"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock advances by step on every call.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(step)
		return t
	}
}

func newMessage(sender, recipient uuid.UUID, content string) *message.Message {
	return &message.Message{
		Kind:        message.KindInternal,
		SenderID:    sender,
		RecipientID: uuid.NullUUID{UUID: recipient, Valid: true},
		Content:     content,
		ContentType: message.ContentText,
		Priority:    message.PriorityNormal,
		Category:    message.DefaultCategory,
		Status:      message.StatusSent,
	}
}

func TestQueryOrdersNewestFirstWithSeqTiebreak(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(func() time.Time { return frozen }))
	repo := NewMessageRepository(store)
	alice, bob := uuid.New(), uuid.New()

	first := newMessage(alice, bob, "first")
	second := newMessage(bob, alice, "second")
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	got, total, err := repo.Query(ctx, repository.MessageQuery{UserID: alice})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
}

func TestQueryScopeFiltersAndPagination(t *testing.T) {
	ctx := context.Background()
	store := NewStore(WithClock(fixedClock(time.Now(), time.Millisecond)))
	repo := NewMessageRepository(store)
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newMessage(alice, bob, "Invoice ready")))
	}
	require.NoError(t, repo.Create(ctx, newMessage(carol, bob, "not for alice")))

	page, total, err := repo.Query(ctx, repository.MessageQuery{UserID: alice, Search: "INVOICE", Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, page, 2)

	none, total, err := repo.Query(ctx, repository.MessageQuery{UserID: alice, Search: "%"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}

func TestMarkReadIsConditional(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewMessageRepository(store)
	alice, bob := uuid.New(), uuid.New()

	m := newMessage(alice, bob, "hello")
	require.NoError(t, repo.Create(ctx, m))

	changed, err := repo.MarkRead(ctx, m.ID, alice)
	require.NoError(t, err)
	assert.False(t, changed, "sender cannot mark as read")

	changed, err = repo.MarkRead(ctx, m.ID, bob)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkRead(ctx, m.ID, bob)
	require.NoError(t, err)
	assert.False(t, changed)

	count, err := repo.CountUnread(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, count)

	failed := newMessage(alice, bob, "bounced")
	failed.Status = message.StatusFailed
	require.NoError(t, repo.Create(ctx, failed))
	changed, err = repo.MarkRead(ctx, failed.ID, bob)
	require.NoError(t, err)
	assert.False(t, changed, "failed messages never become read")
}

func TestCreateRejectsUnknownReplyTarget(t *testing.T) {
	repo := NewMessageRepository(NewStore())
	m := newMessage(uuid.New(), uuid.New(), "reply")
	m.ReplyToID = uuid.NullUUID{UUID: uuid.New(), Valid: true}

	err := repo.Create(context.Background(), m)
	assert.ErrorIs(t, err, core_errors.ErrNotFound)
}

func TestSoftDeleteHidesMessage(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(NewStore())
	alice, bob := uuid.New(), uuid.New()
	m := newMessage(alice, bob, "oops")
	require.NoError(t, repo.Create(ctx, m))

	assert.ErrorIs(t, repo.SoftDelete(ctx, m.ID, bob), core_errors.ErrNotFound)
	require.NoError(t, repo.SoftDelete(ctx, m.ID, alice))

	got, total, err := repo.Query(ctx, repository.MessageQuery{UserID: bob})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, got)

	count, err := repo.CountUnread(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, count)

	failed := newMessage(alice, bob, "bounced")
	failed.Status = message.StatusFailed
	require.NoError(t, repo.Create(ctx, failed))
	changed, err := repo.MarkRead(ctx, failed.ID, bob)
	require.NoError(t, err)
	assert.False(t, changed, "failed messages never become read")
}
