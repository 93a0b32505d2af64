package user

import (
	"database/sql"

	"github.com/google/uuid"
)

type IdentityKind string

const (
	IdentityUser    IdentityKind = "user"
	IdentityPartner IdentityKind = "partner"
)

// Identity is the display projection of a user or partner organization as
// resolved from the identity directory. The core never writes it.
type Identity struct {
	ID             uuid.UUID    `json:"id"`
	Kind           IdentityKind `json:"kind"`
	DisplayName    string       `json:"display_name"`
	Email          string       `json:"email,omitempty"`
	OrganizationID uuid.NullUUID `json:"-"`
}

// User represents the users table columns the core reads.
type User struct {
	ID             uuid.UUID
	Email          sql.NullString
	DisplayName    string
	OrganizationID uuid.NullUUID
}

// Partner represents the partners table columns the core reads.
type Partner struct {
	ID   uuid.UUID
	Name string
}

func (u User) Identity() Identity {
	return Identity{
		ID:             u.ID,
		Kind:           IdentityUser,
		DisplayName:    u.DisplayName,
		Email:          u.Email.String,
		OrganizationID: u.OrganizationID,
	}
}

func (p Partner) Identity() Identity {
	return Identity{ID: p.ID, Kind: IdentityPartner, DisplayName: p.Name}
}
