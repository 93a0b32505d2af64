package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"messaging-core/internal/domain/message"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSend() SendMessageCommand {
	return SendMessageCommand{
		SenderID:    uuid.New(),
		RecipientID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Content:     "hello",
	}
}

func TestSendMessageValidate(t *testing.T) {
	cases := map[string]func(*SendMessageCommand){
		"blank content":       func(c *SendMessageCommand) { c.Content = "   " },
		"missing sender":      func(c *SendMessageCommand) { c.SenderID = uuid.Nil },
		"internal no target":  func(c *SendMessageCommand) { c.RecipientID = uuid.NullUUID{} },
		"unknown priority":    func(c *SendMessageCommand) { c.Priority = "critical" },
		"unknown contenttype": func(c *SendMessageCommand) { c.ContentType = "pdf" },
		"attachment no name": func(c *SendMessageCommand) {
			c.Attachments = []AttachmentInput{{Body: strings.NewReader("x")}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cmd := validSend()
			mutate(&cmd)
			assert.ErrorIs(t, cmd.Validate(), core_errors.ErrValidation)
		})
	}

	assert.NoError(t, validSend().Validate())
}

func TestSendMessageKindDerivedFromPartner(t *testing.T) {
	cmd := validSend()
	assert.Equal(t, message.KindInternal, cmd.Kind())

	cmd.RecipientID = uuid.NullUUID{}
	cmd.PartnerID = uuid.NullUUID{UUID: uuid.New(), Valid: true}
	assert.Equal(t, message.KindExternal, cmd.Kind())
	assert.NoError(t, cmd.Validate(), "external messages do not need a recipient")
}

func TestSendMessageNormalized(t *testing.T) {
	cmd := validSend()
	cmd.Tags = []string{"a", " a ", "b"}
	cmd.Category = "  "

	n := cmd.Normalized()
	assert.Equal(t, message.ContentText, n.ContentType)
	assert.Equal(t, message.PriorityNormal, n.Priority)
	assert.Equal(t, message.DefaultCategory, n.Category)
	assert.Equal(t, []string{"a", "b"}, n.Tags)
	assert.NotNil(t, n.Metadata)
}

type denyAll struct{}

func (denyAll) Authorize(context.Context, Command) error { return core_errors.ErrPermissionDenied }

func TestBusValidatesAuthorizesAndDispatches(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()
	calls := 0
	bus.Register(TypeMarkAllAsRead, HandlerFunc(func(ctx context.Context, cmd Command) (Result, error) {
		calls++
		return Result{Payload: int64(3)}, nil
	}))

	_, err := bus.Execute(ctx, MarkAllAsReadCommand{})
	assert.ErrorIs(t, err, core_errors.ErrValidation)
	assert.Zero(t, calls)

	res, err := bus.Execute(ctx, MarkAllAsReadCommand{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Payload)

	_, err = bus.Execute(ctx, DeleteMessageCommand{MessageID: uuid.New(), UserID: uuid.New()})
	assert.True(t, errors.Is(err, ErrHandlerNotFound))

	guarded := NewBus(denyAll{})
	guarded.Register(TypeMarkAllAsRead, HandlerFunc(func(ctx context.Context, cmd Command) (Result, error) {
		calls++
		return Result{}, nil
	}))
	_, err = guarded.Execute(ctx, MarkAllAsReadCommand{UserID: uuid.New()})
	assert.ErrorIs(t, err, core_errors.ErrPermissionDenied)
	assert.Equal(t, 1, calls)
}
