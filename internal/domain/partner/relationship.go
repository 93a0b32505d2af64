package partner

import (
	"time"

	"github.com/google/uuid"
)

const StatusActive = "active"

// Relationship represents partner_relationships. The registry owns the rows;
// the messaging core only reads them.
type Relationship struct {
	ID        uuid.UUID
	UserAID   uuid.UUID
	UserBID   uuid.UUID
	PartnerID uuid.UUID
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Permits reports whether the relationship lets userID message partnerID.
func (r Relationship) Permits(userID, partnerID uuid.UUID) bool {
	if r.Status != StatusActive || r.PartnerID != partnerID {
		return false
	}
	return r.UserAID == userID || r.UserBID == userID
}
