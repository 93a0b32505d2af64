package repository

import (
	"context"
	"errors"

	"messaging-core/internal/domain/partner"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresRelationshipRepository struct {
	db DBTX
}

func NewRelationshipRepository(db DBTX) RelationshipRepository {
	return &PostgresRelationshipRepository{db: db}
}

func (r *PostgresRelationshipRepository) FindActive(ctx context.Context, userID, partnerID uuid.UUID) (partner.Relationship, error) {
	var rel partner.Relationship
	err := r.db.QueryRow(ctx, `
        SELECT id, user_a_id, user_b_id, partner_id, status, created_at, updated_at
        FROM partner_relationships
        WHERE partner_id = $1 AND (user_a_id = $2 OR user_b_id = $2) AND status = 'active'
        LIMIT 1
    `, partnerID, userID).Scan(
		&rel.ID,
		&rel.UserAID,
		&rel.UserBID,
		&rel.PartnerID,
		&rel.Status,
		&rel.CreatedAt,
		&rel.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return partner.Relationship{}, core_errors.ErrNotFound
		}
		return partner.Relationship{}, err
	}
	return rel, nil
}
