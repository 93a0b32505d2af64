package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"messaging-core/config"
	"messaging-core/internal/handler"
	"messaging-core/internal/metrics"
	"messaging-core/internal/middleware"
	"messaging-core/internal/redis"
	"messaging-core/internal/services"
	"messaging-core/internal/storage"
	"messaging-core/internal/transport/httpdto"
	"messaging-core/internal/websocket"
	core_errors "messaging-core/pkg/errors"
	"messaging-core/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

// HealthFunc reports whether a backing dependency is reachable.
type HealthFunc func(ctx context.Context) error

type Handlers struct {
	Messages  *handler.MessageHandler
	WebSocket *websocket.Handler
}

// Deps are the cross-cutting collaborators the routes need.
type Deps struct {
	Auth     *services.AuthService
	Limiter  redis.MessageLimiter
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Health   map[string]HealthFunc
	// Files serves attachment bytes when blobs are kept in memory.
	Files *storage.MemoryStore
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	// Multipart bodies beyond this spill to temp files.
	engine.MaxMultipartMemory = cfg.MaxAttachmentBytes

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Deps) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.CORSOrigins))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.MetricsMiddleware(deps.Metrics))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		checks := make(map[string]string, len(deps.Health))
		healthy := true
		for name, check := range deps.Health {
			if err := check(c.Request.Context()); err != nil {
				checks[name] = err.Error()
				healthy = false
				continue
			}
			checks[name] = "ok"
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, httpdto.Response[map[string]string]{
				Success: false,
				Data:    checks,
				Error:   "unhealthy",
				Code:    "UNHEALTHY",
			})
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy", "checks": checks}))
	})

	if deps.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	if deps.Files != nil {
		s.engine.GET("/files/*key", serveFile(deps.Files))
	}

	if handlers.WebSocket != nil {
		s.engine.GET("/v1/ws", handlers.WebSocket.Connect)
	}

	messages := s.engine.Group("/v1/messages", middleware.AuthMiddleware(deps.Auth))
	{
		send := []gin.HandlerFunc{handlers.Messages.Send}
		if deps.Limiter != nil {
			send = append([]gin.HandlerFunc{middleware.MessageRateLimitMiddleware(deps.Limiter, s.logger)}, send...)
		}
		messages.GET("", handlers.Messages.List)
		messages.POST("", send...)
		messages.GET("/unread-count", handlers.Messages.UnreadCount)
		messages.POST("/read-all", handlers.Messages.MarkAllRead)
		messages.GET("/threads/:threadId", handlers.Messages.Thread)
		messages.GET("/:id", handlers.Messages.Get)
		messages.DELETE("/:id", handlers.Messages.Delete)
		messages.POST("/:id/read", handlers.Messages.MarkRead)
		messages.GET("/:id/attachments", handlers.Messages.ListAttachments)
		messages.POST("/:id/attachments", handlers.Messages.UploadAttachment)
	}
}

func serveFile(files *storage.MemoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		obj, ok := files.Get(strings.TrimPrefix(c.Param("key"), "/"))
		if !ok {
			c.JSON(httpdto.FromError(core_errors.ErrNotFound))
			return
		}
		contentType := obj.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Data(http.StatusOK, contentType, obj.Body)
	}
}

// Start serves until SIGTERM or SIGINT, then shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
