package middleware

import (
	"net/http"

	"messaging-core/internal/transport/httpdto"
	"messaging-core/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error attached with c.Error unless the
// handler already wrote a response. Internal failures are always logged with
// detail; clients only see a generic message.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, body := httpdto.FromError(err)
		if status >= http.StatusInternalServerError {
			l.For(c.Request.Context()).Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err))
		}
		if c.Writer.Written() {
			return
		}
		c.JSON(status, body)
	}
}
