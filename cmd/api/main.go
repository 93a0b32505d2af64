package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"messaging-core/config"
	"messaging-core/internal/events"
	"messaging-core/internal/handler"
	"messaging-core/internal/metrics"
	"messaging-core/internal/proxy"
	"messaging-core/internal/redis"
	"messaging-core/internal/repository"
	"messaging-core/internal/repository/inmem"
	"messaging-core/internal/server"
	"messaging-core/internal/services"
	"messaging-core/internal/storage"
	"messaging-core/internal/websocket"
	"messaging-core/pkg/database"
	"messaging-core/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// repositories is the storage backing picked by DB_DRIVER.
type repositories struct {
	messages      repository.MessageRepository
	attachments   repository.AttachmentRepository
	relationships repository.RelationshipRepository
	identities    repository.IdentityRepository
	health        server.HealthFunc
	close         func()
}

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Errorf("messaging api stopped: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	repos, err := openRepositories(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer repos.close()

	health := map[string]server.HealthFunc{"database": repos.health}

	var (
		bus     events.Bus
		limiter redis.MessageLimiter
		cache   services.IdentityCache
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer client.Close()
		if err := redis.Ping(ctx, client); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		bus = events.NewRedisBus(client, l.Logger)
		limiter = redis.NewRateLimiter(client, rateLimitConfig(cfg))
		cache = redis.NewCacheStore(client, redis.CacheConfig{IdentityTTL: cfg.IdentityCacheTTL()})
		health["redis"] = func(ctx context.Context) error { return redis.Ping(ctx, client) }
		l.Infof("Using redis at %s for notifications, rate limits and identity cache", cfg.RedisAddr)
	} else {
		bus = events.NewLocalBus()
		limiter = redis.NewLocalLimiter(rateLimitConfig(cfg))
		l.Warnf("REDIS_ADDR not set; notifications and rate limits are local to this instance")
	}
	defer bus.Close()

	blobs, err := openBlobStore(ctx, cfg, l)
	if err != nil {
		return err
	}
	// the memory store's public base points back at this server
	files, _ := blobs.(*storage.MemoryStore)

	// A nil gate is the internal-only configuration.
	var gate proxy.RelationshipGate
	if cfg.ExternalMessaging {
		gate = proxy.NewAccessControl(repos.relationships, l.Logger)
	} else {
		l.Infof("External messaging disabled; partner sends will be denied")
	}

	messaging := services.NewMessagingService(services.MessagingDeps{
		Messages:    repos.messages,
		Attachments: services.NewAttachmentStore(blobs, repos.attachments, cfg.MaxAttachmentBytes, m, l.Logger),
		Identities:  services.NewIdentityDirectory(repos.identities, cache, l.Logger),
		Notifier:    events.NewNotifier(bus, events.NewParticipantChannelResolver(), m, l.Logger),
		Gate:        gate,
		Metrics:     m,
		Logger:      l.Logger,
	})
	authService := services.NewAuthService(cfg)

	hub := websocket.NewHub()
	go hub.Run(ctx)
	bridge := websocket.NewBusBridge(bus, hub, l.Logger)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			l.Errorf("websocket bridge stopped: %v", err)
		}
	}()

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Messages:  handler.NewMessageHandler(messaging),
		WebSocket: websocket.NewHandler(authService, hub, websocket.NewChannelAuthorizer(gate), websocket.NewLogger(l.Logger)),
	}, server.Deps{
		Auth:     authService,
		Limiter:  limiter,
		Metrics:  m,
		Gatherer: registry,
		Health:   health,
		Files:    files,
	})
	return srv.Start()
}

func openRepositories(ctx context.Context, cfg *config.Config, l *logger.Logger) (*repositories, error) {
	switch cfg.DBDriver {
	case "memory":
		l.Warnf("DB_DRIVER=memory; messages are lost on restart")
		store := inmem.NewStore()
		return &repositories{
			messages:      inmem.NewMessageRepository(store),
			attachments:   inmem.NewAttachmentRepository(store),
			relationships: inmem.NewRelationshipRepository(store),
			identities:    inmem.NewIdentityRepository(store),
			health:        func(context.Context) error { return nil },
			close:         func() {},
		}, nil
	case "postgres", "":
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		l.Logger.Info("database ready", zap.String("host", cfg.DBHost), zap.String("name", cfg.DBName))
		return &repositories{
			messages:      repository.NewMessageRepository(pool),
			attachments:   repository.NewAttachmentRepository(pool),
			relationships: repository.NewRelationshipRepository(pool),
			identities:    repository.NewIdentityRepository(pool),
			health:        func(ctx context.Context) error { return database.HealthCheck(ctx, pool) },
			close:         pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config, l *logger.Logger) (storage.BlobStore, error) {
	if cfg.S3Bucket == "" {
		l.Warnf("S3_BUCKET not set; attachments are kept in memory")
		base := cfg.S3PublicBase
		if base == "" {
			base = fmt.Sprintf("http://localhost:%s/files", cfg.AppPort)
		}
		return storage.NewMemoryStore(base), nil
	}
	client, err := storage.NewClient(ctx, storage.S3Config{
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Endpoint:   cfg.S3Endpoint,
		PublicBase: cfg.S3PublicBase,
		PresignTTL: cfg.PresignTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: %w", err)
	}
	return client, nil
}

func rateLimitConfig(cfg *config.Config) redis.RateLimitConfig {
	return redis.RateLimitConfig{
		MessageLimit:  cfg.MessageRateLimit,
		MessageWindow: cfg.MessageRateWindow(),
	}
}
