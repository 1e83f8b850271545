package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nirman-dev/llm-keys/src/models"
	"github.com/nirman-dev/llm-keys/src/services"
)

// UsageHandler receives provider-call reports from the proxy
type UsageHandler struct {
	usage   *services.UsageService
	timeout time.Duration
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(usage *services.UsageService, timeout time.Duration) *UsageHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &UsageHandler{usage: usage, timeout: timeout}
}

// HandleReportUsage records one provider call (POST /internal/usage)
func (h *UsageHandler) HandleReportUsage(c *gin.Context) {
	var report models.UsageReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid usage report",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	receipt, err := h.usage.RecordUsage(ctx, report)
	if err != nil {
		respondError(c, "usage_handler", err)
		return
	}

	c.JSON(http.StatusCreated, receipt)
}
