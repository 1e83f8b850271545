package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggingMiddleware logs every request once it completes. Authenticated
// requests carry the user id, and key routes carry the key id from the path.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		event := levelFor(status)

		event.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Int("bytes", c.Writer.Size()).
			Str("client_ip", c.ClientIP())

		// Matched pattern, so /api/llm-keys/:id requests group together
		if route := c.FullPath(); route != "" {
			event.Str("route", route)
		}
		if userID := GetUserID(c); userID != "" {
			event.Str("user_id", userID)
		}
		if keyID := c.Param("id"); keyID != "" {
			event.Str("key_id", keyID)
		}
		if query != "" {
			event.Str("query", query)
		}
		if len(c.Errors) > 0 {
			event.Str("error", c.Errors.String())
		}

		switch {
		case status >= 500:
			event.Msg("server error")
		case status >= 400:
			event.Msg("client error")
		default:
			event.Msg("request")
		}
	}
}

func levelFor(status int) *zerolog.Event {
	switch {
	case status >= 500:
		return log.Error()
	case status >= 400:
		return log.Warn()
	}
	return log.Info()
}
