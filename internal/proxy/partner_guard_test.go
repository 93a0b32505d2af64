package proxy

import (
	"context"
	"testing"

	"messaging-core/internal/commands"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type staticGate bool

func (g staticGate) IsActive(context.Context, uuid.UUID, uuid.UUID) bool { return bool(g) }

func TestPartnerGuard(t *testing.T) {
	ctx := context.Background()
	internal := commands.SendMessageCommand{
		SenderID:    uuid.New(),
		RecipientID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Content:     "hi",
	}
	external := commands.SendMessageCommand{
		SenderID:  uuid.New(),
		PartnerID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Content:   "hi",
	}

	assert.NoError(t, NewPartnerGuard(nil).Authorize(ctx, internal))
	assert.NoError(t, NewPartnerGuard(staticGate(false)).Authorize(ctx, commands.MarkAllAsReadCommand{UserID: uuid.New()}))

	assert.ErrorIs(t, NewPartnerGuard(nil).Authorize(ctx, external), core_errors.ErrPermissionDenied)
	assert.ErrorIs(t, NewPartnerGuard(staticGate(false)).Authorize(ctx, external), core_errors.ErrPermissionDenied)
	assert.ErrorIs(t, NewPartnerGuard(staticGate(false)).Authorize(ctx, external), ErrNoRelationship)
	assert.NoError(t, NewPartnerGuard(staticGate(true)).Authorize(ctx, external))
}
