package middleware

import (
	"time"

	"messaging-core/internal/services"
	"messaging-core/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func LoggingMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log := l
		if log == nil {
			log = logger.GetGlobalLogger()
		}
		if log == nil {
			return
		}
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		ctx := c.Request.Context()
		if sessionID, ok := services.SessionIDFromContext(ctx); ok {
			fields = append(fields, zap.String("session_id", sessionID))
		}
		log.For(ctx).Info("request", fields...)
	}
}
