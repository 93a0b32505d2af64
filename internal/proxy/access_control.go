package proxy

import (
	"context"
	"errors"

	"messaging-core/internal/repository"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RelationshipGate answers whether a user may exchange external messages
// with a partner organization.
type RelationshipGate interface {
	IsActive(ctx context.Context, userID, partnerID uuid.UUID) bool
}

// AccessControl is the registry-backed RelationshipGate. It fails closed:
// lookup errors and missing rows both deny.
type AccessControl struct {
	relationshipRepo repository.RelationshipRepository
	log              *zap.Logger
}

func NewAccessControl(relationshipRepo repository.RelationshipRepository, log *zap.Logger) *AccessControl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccessControl{relationshipRepo: relationshipRepo, log: log}
}

var _ RelationshipGate = (*AccessControl)(nil)

func (a *AccessControl) IsActive(ctx context.Context, userID, partnerID uuid.UUID) bool {
	if a == nil || a.relationshipRepo == nil {
		return false
	}
	if userID == uuid.Nil || partnerID == uuid.Nil {
		return false
	}
	rel, err := a.relationshipRepo.FindActive(ctx, userID, partnerID)
	if err != nil {
		if !errors.Is(err, core_errors.ErrNotFound) {
			a.log.Warn("relationship lookup failed, denying",
				zap.String("user_id", userID.String()),
				zap.String("partner_id", partnerID.String()),
				zap.Error(err))
		}
		return false
	}
	// the repository filters on status, but never trust a row that does not
	// itself permit the pair
	return rel.Permits(userID, partnerID)
}
