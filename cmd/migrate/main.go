package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"messaging-core/config"
	"messaging-core/internal/repository"
	"messaging-core/internal/services"
	"messaging-core/internal/storage"
	"messaging-core/pkg/database"
	"messaging-core/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const usage = `
Messaging Core - Database CLI Tool

Usage:
  migrate [command] [flags] [args]

Commands:
  up                   Create enums, tables and indexes (idempotent)
  status               Show which managed tables exist
  seed-dev             Seed directory users, a partner and a relationship,
                       then print access tokens for them
  orphans <messageID>  List blobs under a message with no attachment row

Flags:
  -token-ttl duration  Lifetime of tokens printed by seed-dev (default 24h)

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed-dev -token-ttl 2h
  go run cmd/migrate/main.go orphans 0b7c...
`

func main() {
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of tokens printed by seed-dev")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	if command != "orphans" {
		// Flags may follow the command.
		_ = flag.CommandLine.Parse(flag.Args()[1:])
	}

	cfg := config.LoadConfig()
	l := logger.New(cfg.AppMode)
	defer l.Sync()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	switch command {
	case "up":
		runMigrationsUp(ctx, pool)
	case "status":
		showStatus(ctx, pool)
	case "seed-dev":
		runSeedDevelopment(ctx, pool, cfg, l, *tokenTTL)
	case "orphans":
		if flag.NArg() < 2 {
			log.Fatal("orphans needs a message id")
		}
		runOrphans(ctx, pool, cfg, flag.Arg(1))
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(ctx context.Context, pool *pgxpool.Pool) {
	fmt.Println("Running migrations...")
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	fmt.Println("Migrations completed successfully!")
}

func showStatus(ctx context.Context, pool *pgxpool.Pool) {
	fmt.Println("Database Status:")
	fmt.Println("================")

	if err := database.HealthCheck(ctx, pool); err != nil {
		fmt.Printf("Connection: FAILED (%v)\n", err)
		os.Exit(1)
	}
	fmt.Println("Connection: OK")

	status, err := repository.SchemaStatus(ctx, pool)
	if err != nil {
		log.Fatalf("Failed to read schema: %v", err)
	}
	for _, table := range repository.Tables {
		state := "missing"
		if status[table] {
			state = "present"
		}
		fmt.Printf("  %-24s %s\n", table, state)
	}
}

func runSeedDevelopment(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, l *logger.Logger, ttl time.Duration) {
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	result, err := database.SeedDev(ctx, pool, database.DefaultSeedConfig(), l.Logger)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	if len(result.Users) == 0 {
		fmt.Println("Directory already seeded; nothing to do.")
		return
	}

	auth := services.NewAuthService(cfg)
	fmt.Printf("Partner: %s (%s)\n", result.Partner.Name, result.Partner.ID)
	for _, u := range result.Users {
		token, err := auth.IssueAccessToken(u.ID, ttl)
		if err != nil {
			log.Fatalf("Failed to issue token for %s: %v", u.ID, err)
		}
		fmt.Printf("\n%s <%s>\n  id:    %s\n  token: %s\n", u.DisplayName, u.Email.String, u.ID, token)
	}
	for _, rel := range result.Relationships {
		fmt.Printf("\nActive relationship %s: %s <-> %s via partner %s\n", rel.ID, rel.UserAID, rel.UserBID, rel.PartnerID)
	}
}

func runOrphans(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, rawID string) {
	messageID, err := uuid.Parse(rawID)
	if err != nil {
		log.Fatalf("Invalid message id %q: %v", rawID, err)
	}
	if cfg.S3Bucket == "" {
		log.Fatal("S3_BUCKET is required to scan for orphans")
	}

	blobs, err := storage.NewClient(ctx, storage.S3Config{
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Endpoint:   cfg.S3Endpoint,
		PublicBase: cfg.S3PublicBase,
		PresignTTL: cfg.PresignTTL(),
	})
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	store := services.NewAttachmentStore(blobs, repository.NewAttachmentRepository(pool), cfg.MaxAttachmentBytes, nil, nil)
	orphans, err := store.FindOrphans(ctx, messageID)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	if len(orphans) == 0 {
		fmt.Println("No orphaned blobs.")
		return
	}
	sort.Strings(orphans)
	for _, key := range orphans {
		fmt.Println(key)
	}
}
