package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nirman-dev/llm-keys/src/middleware"
	"github.com/nirman-dev/llm-keys/src/models"
	"github.com/nirman-dev/llm-keys/src/services"
)

const llmKeysComponent = "llm_keys_handler"

// LLMKeyHandler serves the /api/llm-keys endpoints
type LLMKeyHandler struct {
	keys    *services.KeyService
	credits *services.CreditsService
	stats   *services.StatsService
	timeout time.Duration
}

// NewLLMKeyHandler creates a new LLM key handler. timeout bounds each request's store calls.
func NewLLMKeyHandler(keys *services.KeyService, credits *services.CreditsService, stats *services.StatsService, timeout time.Duration) *LLMKeyHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LLMKeyHandler{
		keys:    keys,
		credits: credits,
		stats:   stats,
		timeout: timeout,
	}
}

// RegisterRoutes mounts the authenticated key endpoints on rg
func (h *LLMKeyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.HandleListKeys)
	rg.POST("", h.HandleCreateKey)
	rg.GET("/overview/stats", h.HandleOverviewStats)
	rg.GET("/:id", h.HandleGetKey)
	rg.PUT("/:id", h.HandleUpdateKey)
	rg.DELETE("/:id", h.HandleDeleteKey)
	rg.POST("/:id/regenerate", h.HandleRegenerateKey)
	rg.POST("/:id/add-credits", h.HandleAddCredits)
	rg.GET("/:id/credits-history", h.HandleCreditsHistory)
	rg.GET("/:id/usage", h.HandleUsageStats)
}

// createKeyRequest is the optional body of POST /api/llm-keys
type createKeyRequest struct {
	Name             string   `json:"name"`
	AllowedProviders []string `json:"allowed_providers"`
}

// addCreditsRequest is the body of POST /api/llm-keys/:id/add-credits
type addCreditsRequest struct {
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
}

func (h *LLMKeyHandler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// keyID parses the :id path parameter. Malformed ids cannot name a key, so
// they get the same 404 as unknown ones.
func keyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Key not found"})
		return uuid.Nil, false
	}
	return id, true
}

// bindOptionalJSON binds the request body into obj; an empty body is allowed
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

// queryInt reads an optional integer query parameter; 0 means absent
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return v, true
}

// HandleListKeys returns the user's keys (GET /api/llm-keys)
func (h *LLMKeyHandler) HandleListKeys(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	keys, err := h.keys.ListKeys(ctx, middleware.GetUserID(c))
	if err != nil {
		respondError(c, llmKeysComponent, err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

// HandleCreateKey issues a new key (POST /api/llm-keys)
func (h *LLMKeyHandler) HandleCreateKey(c *gin.Context) {
	var req createKeyRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	created, err := h.keys.CreateKey(ctx, middleware.GetUserID(c), req.Name, req.AllowedProviders)
	if err != nil {
		respondError(c, llmKeysComponent, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

// HandleGetKey returns one key (GET /api/llm-keys/:id)
func (h *LLMKeyHandler) HandleGetKey(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	key, err := h.keys.GetKey(ctx, id, middleware.GetUserID(c))
	if err != nil {
		respondError(c, llmKeysComponent, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

// HandleUpdateKey applies a partial update (PUT /api/llm-keys/:id)
func (h *LLMKeyHandler) HandleUpdateKey(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}

	var upd models.KeyUpdate
	if !bindOptionalJSON(c, &upd) {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	if err := h.keys.UpdateKey(ctx, id, middleware.GetUserID(c), upd); err != nil {
		respondError(c, llmKeysComponent, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key updated successfully"})
}

// HandleDeleteKey soft-deletes a key (DELETE /api/llm-keys/:id)
func (h *LLMKeyHandler) HandleDeleteKey(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	if err := h.keys.DeleteKey(ctx, id, middleware.GetUserID(c)); err != nil {
		respondError(c, llmKeysComponent, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key deleted successfully"})
}

// HandleRegenerateKey replaces a key's secret (POST /api/llm-keys/:id/regenerate)
func (h *LLMKeyHandler) HandleRegenerateKey(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	regenerated, err := h.keys.RegenerateKey(ctx, id, middleware.GetUserID(c))
	if err != nil {
		respondError(c, llmKeysComponent, err)
		return
	}
	c.JSON(http.StatusOK, regenerated)
}

// HandleAddCredits tops up a key (POST /api/llm-keys/:id/add-credits)
func (h *LLMKeyHandler) HandleAddCredits(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}

	var req addCreditsRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = c.Query("payment_method")
	}

	ctx, cancel := h.context(c)
	defer cancel()

	result, err := h.credits.AddCredits(ctx, id, middleware.GetUserID(c), req.Amount, req.PaymentMethod)
	if err != nil {
		respondError(c, llmKeysComponent, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleCreditsHistory lists a key's ledger (GET /api/llm-keys/:id/credits-history?limit=)
func (h *LLMKeyHandler) HandleCreditsHistory(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	history, err := h.credits.CreditsHistory(ctx, id, middleware.GetUserID(c), limit)
	if err != nil {
		respondError(c, llmKeysComponent, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// HandleUsageStats aggregates a key's usage (GET /api/llm-keys/:id/usage?days=)
func (h *LLMKeyHandler) HandleUsageStats(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	days, ok := queryInt(c, "days")
	if !ok {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	stats, err := h.stats.UsageStats(ctx, id, middleware.GetUserID(c), days)
	if err != nil {
		respondError(c, llmKeysComponent, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleOverviewStats summarizes all of the user's keys (GET /api/llm-keys/overview/stats)
func (h *LLMKeyHandler) HandleOverviewStats(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	overview, err := h.stats.OverviewStats(ctx, middleware.GetUserID(c))
	if err != nil {
		respondError(c, llmKeysComponent, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// HandlePricingInfo serves the static pricing catalog (GET /api/llm-keys/pricing/info)
func HandlePricingInfo(c *gin.Context) {
	c.JSON(http.StatusOK, services.PricingCatalog())
}
