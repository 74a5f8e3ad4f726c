package broker

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meshgate/platform/internal/logging"
)

// requestIDHeader and requestIDKey mirror the teacher's
// internal/middleware/request_id.go constants.
const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID generates or forwards a correlation id for the upgrade
// request, adapted from the teacher's request_id.go.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// StructuredLogger replaces the teacher's log.Printf-based access logger
// (internal/middleware/structured_logger.go) with zerolog, consistent
// with the rest of the process's logging.
func StructuredLogger() gin.HandlerFunc {
	log := logging.Broker()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info().
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request handled")
	}
}
