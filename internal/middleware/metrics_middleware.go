package middleware

import (
	"strconv"
	"time"

	"messaging-core/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware records request latency by route template so ids do
// not explode label cardinality.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
