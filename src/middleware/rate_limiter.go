package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nirman-dev/llm-keys/src/ratelimit"
)

// RateLimitConfig defines configuration for the rate limiting middleware
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

func (cfg RateLimitConfig) withDefaults(perMinute, burst int) RateLimitConfig {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = perMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = burst
	}
	return cfg
}

// NewRateLimitingMiddleware enforces per-user limits. It must run after
// UserAuthMiddleware; unauthenticated requests fall back to the client IP.
func NewRateLimitingMiddleware(registry *ratelimit.Registry, cfg RateLimitConfig) gin.HandlerFunc {
	cfg = cfg.withDefaults(120, 20)
	limit := ratelimit.PerMinute(cfg.RequestsPerMinute)

	return func(c *gin.Context) {
		key := "user:" + GetUserID(c)
		if key == "user:" {
			key = "ip:" + c.ClientIP()
		}

		if !registry.Allow(key, limit, cfg.Burst) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":  "rate limit exceeded",
				"detail": "Too many requests. Try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// NewIPRateLimitingMiddleware enforces per-IP limits on public endpoints
func NewIPRateLimitingMiddleware(registry *ratelimit.Registry, cfg RateLimitConfig) gin.HandlerFunc {
	cfg = cfg.withDefaults(60, 10)
	limit := ratelimit.PerMinute(cfg.RequestsPerMinute)

	return func(c *gin.Context) {
		if !registry.Allow("public:"+c.ClientIP(), limit, cfg.Burst) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please try again later.",
				"retry_after": "60s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
