package repository

import (
	"context"
	"fmt"
)

// enums are created inside DO blocks so that re-running the migration is a
// no-op once the types exist.
var enums = []string{
	`DO $$ BEGIN
		CREATE TYPE message_kind AS ENUM ('internal', 'external');
	EXCEPTION
		WHEN duplicate_object THEN null;
	END $$;`,
	`DO $$ BEGIN
		CREATE TYPE message_content_type AS ENUM ('text', 'html', 'markdown');
	EXCEPTION
		WHEN duplicate_object THEN null;
	END $$;`,
	`DO $$ BEGIN
		CREATE TYPE message_priority AS ENUM ('low', 'normal', 'high', 'urgent');
	EXCEPTION
		WHEN duplicate_object THEN null;
	END $$;`,
	`DO $$ BEGIN
		CREATE TYPE message_status AS ENUM ('sent', 'delivered', 'read', 'failed', 'deleted');
	EXCEPTION
		WHEN duplicate_object THEN null;
	END $$;`,
}

// directoryTables back the identity directory and the relationship registry
// in development. Production deployments point at the owning services'
// tables, which have the same shape.
var directoryTables = []string{
	`CREATE TABLE IF NOT EXISTS partners (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT UNIQUE,
		display_name TEXT NOT NULL,
		organization_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS partner_relationships (
		id UUID PRIMARY KEY,
		user_a_id UUID NOT NULL,
		user_b_id UUID NOT NULL,
		partner_id UUID NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_partner_relationships_partner ON partner_relationships (partner_id, status);`,
}

var messagingTables = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		seq BIGSERIAL NOT NULL UNIQUE,
		kind message_kind NOT NULL,
		sender_id UUID NOT NULL,
		recipient_id UUID,
		partner_id UUID,
		subject TEXT,
		content TEXT NOT NULL,
		content_type message_content_type NOT NULL DEFAULT 'text',
		priority message_priority NOT NULL DEFAULT 'normal',
		category TEXT NOT NULL DEFAULT 'general',
		status message_status NOT NULL DEFAULT 'sent',
		is_read BOOLEAN NOT NULL DEFAULT false,
		read_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ,
		thread_id UUID,
		reply_to_id UUID REFERENCES messages (id),
		related_order_id TEXT,
		tags TEXT[] NOT NULL DEFAULT '{}',
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT messages_external_partner CHECK (kind <> 'external' OR partner_id IS NOT NULL)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_recipient_read ON messages (recipient_id, is_read);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_sender_created ON messages (sender_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_thread_created ON messages (thread_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS message_attachments (
		id UUID PRIMARY KEY,
		message_id UUID NOT NULL REFERENCES messages (id),
		file_name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		file_path TEXT NOT NULL UNIQUE,
		uploaded_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_message_attachments_message ON message_attachments (message_id, created_at);`,
}

// Tables lists the tables Migrate manages, in creation order.
var Tables = []string{"partners", "users", "partner_relationships", "messages", "message_attachments"}

// InitSchema creates enums, tables and indexes. Every statement is
// idempotent.
func InitSchema(ctx context.Context, db DBTX) error {
	for _, enum := range enums {
		if _, err := db.Exec(ctx, enum); err != nil {
			return fmt.Errorf("failed to create enum: %w", err)
		}
	}
	for _, stmt := range directoryTables {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create directory table: %w", err)
		}
	}
	for _, stmt := range messagingTables {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create messaging table: %w", err)
		}
	}
	return nil
}

// SchemaStatus reports which managed tables exist.
func SchemaStatus(ctx context.Context, db DBTX) (map[string]bool, error) {
	status := make(map[string]bool, len(Tables))
	for _, table := range Tables {
		var exists bool
		err := db.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, "public."+table).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check table %s: %w", table, err)
		}
		status[table] = exists
	}
	return status, nil
}
