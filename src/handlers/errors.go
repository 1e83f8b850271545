package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nirman-dev/llm-keys/src/middleware"
	"github.com/nirman-dev/llm-keys/src/services"
)

// errorResponse maps a service sentinel to its HTTP status and public message
type errorResponse struct {
	err     error
	status  int
	message string
}

var errorResponses = []errorResponse{
	{services.ErrKeyNotFound, http.StatusNotFound, "Key not found"},
	{services.ErrKeyQuotaExceeded, http.StatusBadRequest, "Maximum 5 keys allowed per user"},
	{services.ErrInvalidAmount, http.StatusBadRequest, "Amount must be positive"},
	{services.ErrInsufficientFunds, http.StatusBadRequest, "Insufficient wallet balance"},
	{services.ErrInvalidPaymentMethod, http.StatusBadRequest, "Unsupported payment method"},
	{services.ErrInvalidProvider, http.StatusBadRequest, ""},
	{services.ErrInvalidRateLimit, http.StatusBadRequest, "Rate limits must be positive"},
	{services.ErrInvalidUsage, http.StatusBadRequest, "Usage values must not be negative"},
	{services.ErrKeyInactive, http.StatusForbidden, "Key is inactive or expired"},
	{services.ErrProviderNotAllowed, http.StatusForbidden, "Provider not allowed for this key"},
	{services.ErrInsufficientCredits, http.StatusPaymentRequired, "Insufficient key credits"},
	{services.ErrRateLimited, http.StatusTooManyRequests, "Rate limit exceeded"},
}

// respondError writes the JSON error for err. Unknown errors are logged and
// reported as a bare 500.
func respondError(c *gin.Context, component string, err error) {
	for _, r := range errorResponses {
		if errors.Is(err, r.err) {
			message := r.message
			if message == "" {
				message = err.Error()
			}
			c.JSON(r.status, gin.H{"error": message})
			return
		}
	}

	logger := middleware.RequestLogger(c, component)
	logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
