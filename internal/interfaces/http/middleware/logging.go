// Package middleware holds the gin middleware chain shared by every route
// group: structured request logging and permissive CORS for the local-first
// ingest/retrieval API.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
)

// Logging returns a gin.HandlerFunc that logs one structured line per
// request through the teacher's zap-backed Logger, mirroring the fields the
// teacher's own request logger captures (method, path, status, latency).
func Logging(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			logging.String("method", c.Request.Method),
			logging.String("path", path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("latency", time.Since(start)),
		)
	}
}
