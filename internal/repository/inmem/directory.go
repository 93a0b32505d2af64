package inmem

import (
	"context"

	"messaging-core/internal/domain/partner"
	"messaging-core/internal/domain/user"
	"messaging-core/internal/repository"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
)

// AddUser registers a directory user.
func (s *Store) AddUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID.String()] = u
}

// AddPartner registers a partner organization.
func (s *Store) AddPartner(p user.Partner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partners[p.ID.String()] = p
}

// AddRelationship registers a partner relationship row.
func (s *Store) AddRelationship(rel partner.Relationship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	now := s.timestamp()
	rel.CreatedAt, rel.UpdatedAt = now, now
	s.relationships = append(s.relationships, rel)
}

// SetRelationshipStatus changes the status of every row linking userID and
// partnerID.
func (s *Store) SetRelationshipStatus(userID, partnerID uuid.UUID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.relationships {
		rel := &s.relationships[i]
		if rel.PartnerID == partnerID && (rel.UserAID == userID || rel.UserBID == userID) {
			rel.Status = status
			rel.UpdatedAt = s.timestamp()
		}
	}
}

type RelationshipRepository struct {
	store *Store
}

func NewRelationshipRepository(store *Store) repository.RelationshipRepository {
	return &RelationshipRepository{store: store}
}

func (r *RelationshipRepository) FindActive(ctx context.Context, userID, partnerID uuid.UUID) (partner.Relationship, error) {
	if err := ctx.Err(); err != nil {
		return partner.Relationship{}, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, rel := range r.store.relationships {
		if rel.Permits(userID, partnerID) {
			return rel, nil
		}
	}
	return partner.Relationship{}, core_errors.ErrNotFound
}

type IdentityRepository struct {
	store *Store
}

func NewIdentityRepository(store *Store) repository.IdentityRepository {
	return &IdentityRepository{store: store}
}

func (r *IdentityRepository) GetUsers(ctx context.Context, ids []uuid.UUID) ([]user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.store.users[id.String()]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *IdentityRepository) GetPartners(ctx context.Context, ids []uuid.UUID) ([]user.Partner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]user.Partner, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.store.partners[id.String()]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
