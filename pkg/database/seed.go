package database

import (
	"context"
	"database/sql"
	"fmt"

	"messaging-core/internal/domain/partner"
	"messaging-core/internal/domain/user"
	"messaging-core/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SeedConfig holds configuration for the development fixtures.
type SeedConfig struct {
	OrganizationName string
	PartnerName      string
	UserCount        int
}

func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		OrganizationName: "Acme Internal",
		PartnerName:      "Globex Partner",
		UserCount:        3,
	}
}

// SeedResult lists the rows created so they can be printed for manual
// testing (tokens are minted for these ids).
type SeedResult struct {
	Users         []user.User
	Partner       user.Partner
	Relationships []partner.Relationship
}

// SeedDev writes directory users, one partner organization with a contact
// user and an active relationship between the first user and the partner. It runs in one
// transaction and is skipped when users already exist.
func SeedDev(ctx context.Context, db interface {
	repository.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}, cfg *SeedConfig, log *zap.Logger) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}

	var existing int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&existing); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if existing > 0 {
		log.Info("users already present, skipping seed", zap.Int("count", existing))
		return &SeedResult{}, nil
	}

	result := &SeedResult{}
	orgID := uuid.New()
	result.Partner = user.Partner{ID: uuid.New(), Name: cfg.PartnerName}
	for i := 0; i < cfg.UserCount; i++ {
		result.Users = append(result.Users, user.User{
			ID:             uuid.New(),
			Email:          sql.NullString{String: fmt.Sprintf("user%d@example.com", i+1), Valid: true},
			DisplayName:    fmt.Sprintf("%s User %d", cfg.OrganizationName, i+1),
			OrganizationID: uuid.NullUUID{UUID: orgID, Valid: true},
		})
	}
	contact := user.User{
		ID:             uuid.New(),
		Email:          sql.NullString{String: "contact@partner.example.com", Valid: true},
		DisplayName:    cfg.PartnerName + " Contact",
		OrganizationID: uuid.NullUUID{UUID: result.Partner.ID, Valid: true},
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO partners (id, name) VALUES ($1, $2)`,
		result.Partner.ID, result.Partner.Name); err != nil {
		return nil, fmt.Errorf("insert partner: %w", err)
	}
	result.Users = append(result.Users, contact)
	for _, u := range result.Users {
		if _, err := tx.Exec(ctx, `
            INSERT INTO users (id, email, display_name, organization_id)
            VALUES ($1,$2,$3,$4)
        `, u.ID, u.Email, u.DisplayName, u.OrganizationID); err != nil {
			return nil, fmt.Errorf("insert user %s: %w", u.ID, err)
		}
	}
	if cfg.UserCount > 0 {
		rel := partner.Relationship{
			ID:        uuid.New(),
			UserAID:   result.Users[0].ID,
			UserBID:   contact.ID,
			PartnerID: result.Partner.ID,
			Status:    partner.StatusActive,
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO partner_relationships (id, user_a_id, user_b_id, partner_id, status)
            VALUES ($1,$2,$3,$4,$5)
        `, rel.ID, rel.UserAID, rel.UserBID, rel.PartnerID, rel.Status); err != nil {
			return nil, fmt.Errorf("insert relationship: %w", err)
		}
		result.Relationships = append(result.Relationships, rel)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	log.Info("seeded development directory",
		zap.Int("users", len(result.Users)),
		zap.String("partner_id", result.Partner.ID.String()))
	return result, nil
}
