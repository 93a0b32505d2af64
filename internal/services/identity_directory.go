package services

import (
	"context"

	"messaging-core/internal/domain/user"
	"messaging-core/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdentityCache is implemented by redis.CacheStore.
type IdentityCache interface {
	GetIdentities(ctx context.Context, kind user.IdentityKind, ids []uuid.UUID) (map[uuid.UUID]user.Identity, []uuid.UUID, error)
	SetIdentities(ctx context.Context, identities []user.Identity) error
}

// IdentityDirectory resolves display fields for users and partners.
// Lookups are best effort: failures are logged and the caller receives
// whatever could be resolved.
type IdentityDirectory struct {
	repo  repository.IdentityRepository
	cache IdentityCache
	log   *zap.Logger
}

func NewIdentityDirectory(repo repository.IdentityRepository, cache IdentityCache, log *zap.Logger) *IdentityDirectory {
	if log == nil {
		log = zap.NewNop()
	}
	return &IdentityDirectory{repo: repo, cache: cache, log: log}
}

func (d *IdentityDirectory) Users(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]user.Identity {
	return d.resolve(ctx, user.IdentityUser, ids)
}

func (d *IdentityDirectory) Partners(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]user.Identity {
	return d.resolve(ctx, user.IdentityPartner, ids)
}

func (d *IdentityDirectory) resolve(ctx context.Context, kind user.IdentityKind, ids []uuid.UUID) map[uuid.UUID]user.Identity {
	out := make(map[uuid.UUID]user.Identity, len(ids))
	if d == nil || len(ids) == 0 {
		return out
	}
	ids = uniqueIDs(ids)

	missing := ids
	if d.cache != nil {
		hits, misses, err := d.cache.GetIdentities(ctx, kind, ids)
		if err != nil {
			d.log.Warn("identity cache read failed", zap.String("kind", string(kind)), zap.Error(err))
		}
		for id, ident := range hits {
			out[id] = ident
		}
		missing = misses
	}
	if len(missing) == 0 || d.repo == nil {
		return out
	}

	var fetched []user.Identity
	switch kind {
	case user.IdentityUser:
		users, err := d.repo.GetUsers(ctx, missing)
		if err != nil {
			d.log.Warn("identity lookup failed", zap.String("kind", string(kind)), zap.Error(err))
			return out
		}
		for _, u := range users {
			fetched = append(fetched, u.Identity())
		}
	case user.IdentityPartner:
		partners, err := d.repo.GetPartners(ctx, missing)
		if err != nil {
			d.log.Warn("identity lookup failed", zap.String("kind", string(kind)), zap.Error(err))
			return out
		}
		for _, p := range partners {
			fetched = append(fetched, p.Identity())
		}
	}

	for _, ident := range fetched {
		out[ident.ID] = ident
	}
	if d.cache != nil && len(fetched) > 0 {
		if err := d.cache.SetIdentities(ctx, fetched); err != nil {
			d.log.Warn("identity cache write failed", zap.Error(err))
		}
	}
	return out
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
