package proxy

import (
	"context"
	"fmt"

	"messaging-core/internal/commands"
	"messaging-core/internal/domain/message"
	core_errors "messaging-core/pkg/errors"
)

// ErrNoRelationship is the guard's denial; it wraps ErrPermissionDenied.
var ErrNoRelationship = fmt.Errorf("%w: no active partner relationship", core_errors.ErrPermissionDenied)

// PartnerGuard is the command proxy for the external messaging policy.
// Internal commands pass through. External sends are denied unless the
// gate reports an active relationship; a missing gate denies everything
// external.
type PartnerGuard struct {
	gate RelationshipGate
}

func NewPartnerGuard(gate RelationshipGate) *PartnerGuard {
	return &PartnerGuard{gate: gate}
}

var _ commands.Proxy = (*PartnerGuard)(nil)

func (g *PartnerGuard) Authorize(ctx context.Context, cmd commands.Command) error {
	send, ok := cmd.(commands.SendMessageCommand)
	if !ok || send.Kind() != message.KindExternal {
		return nil
	}
	if g == nil || g.gate == nil {
		return ErrNoRelationship
	}
	if !g.gate.IsActive(ctx, send.SenderID, send.PartnerID.UUID) {
		return ErrNoRelationship
	}
	return nil
}
