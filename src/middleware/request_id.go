package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nirman-dev/llm-keys/src/logging"
	"github.com/rs/zerolog"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "request_id"

// maxRequestIDLength bounds client-supplied ids before they reach the logs
const maxRequestIDLength = 64

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Reuse the caller's id (e.g. from the proxy) when it is sane
		requestID := c.GetHeader("X-Request-ID")
		if !validRequestID(requestID) {
			// Generate short UUID for readability
			requestID = uuid.New().String()[:8]
		}

		// Store in context
		c.Set(RequestIDKey, requestID)

		// Add to response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}

// GetRequestID retrieves the request ID from context
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// RequestLogger returns a component logger tagged with the request and user ids
func RequestLogger(c *gin.Context, component string) zerolog.Logger {
	return logging.RequestLogger(component, GetRequestID(c), GetUserID(c))
}
