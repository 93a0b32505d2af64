package repository

import (
	"context"

	"messaging-core/internal/domain/user"

	"github.com/google/uuid"
)

// PostgresIdentityRepository reads the identity directory tables. The
// directory is owned by another service; these queries never write.
type PostgresIdentityRepository struct {
	db DBTX
}

func NewIdentityRepository(db DBTX) IdentityRepository {
	return &PostgresIdentityRepository{db: db}
}

func (r *PostgresIdentityRepository) GetUsers(ctx context.Context, ids []uuid.UUID) ([]user.User, error) {
	users := make([]user.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	rows, err := r.db.Query(ctx, `
        SELECT id, email, display_name, organization_id
        FROM users
        WHERE id IN (`+buildPlaceholders(1, len(ids))+`)
    `, uuidArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.OrganizationID); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PostgresIdentityRepository) GetPartners(ctx context.Context, ids []uuid.UUID) ([]user.Partner, error) {
	partners := make([]user.Partner, 0, len(ids))
	if len(ids) == 0 {
		return partners, nil
	}
	rows, err := r.db.Query(ctx, `
        SELECT id, name
        FROM partners
        WHERE id IN (`+buildPlaceholders(1, len(ids))+`)
    `, uuidArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p user.Partner
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

func uuidArgs(ids []uuid.UUID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
