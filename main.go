package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nirman-dev/llm-keys/src/config"
	"github.com/nirman-dev/llm-keys/src/database"
	"github.com/nirman-dev/llm-keys/src/handlers"
	"github.com/nirman-dev/llm-keys/src/logging"
	"github.com/nirman-dev/llm-keys/src/middleware"
	"github.com/nirman-dev/llm-keys/src/ratelimit"
	"github.com/nirman-dev/llm-keys/src/repositories"
	"github.com/nirman-dev/llm-keys/src/services"
	"github.com/rs/zerolog/log"
)

// devOrigins are accepted when ALLOWED_ORIGINS is empty
var devOrigins = []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:8080"}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	log.Info().
		Int("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Msg("starting server")

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.New(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	log.Info().Msg("database connected")

	// Initialize JWT secret in middleware
	if err := middleware.SetJWTSecret(cfg.JWTSecret); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize JWT secret")
	}

	// Initialize encryption (optional, empty key disables)
	encryptor, err := services.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize encryption")
	}
	if encryptor != nil {
		log.Info().Msg("key secret encryption enabled (AES-256-GCM)")
	} else {
		log.Info().Msg("key secret encryption disabled (ENCRYPTION_KEY not set)")
	}

	// Initialize Analytics Service
	analyticsService, err := services.NewAnalyticsService(services.AnalyticsConfig{
		PostHogAPIKey: cfg.PostHogAPIKey,
		PostHogHost:   cfg.PostHogHost,
		Enabled:       cfg.PostHogEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize analytics service")
	}
	defer analyticsService.Close()

	if cfg.PostHogEnabled {
		log.Info().Str("host", cfg.PostHogHost).Msg("PostHog analytics enabled")
	} else {
		log.Info().Msg("PostHog analytics disabled")
	}

	// Repositories and services
	keyRepo := repositories.NewKeyRepository(db.GetPool())
	creditRepo := repositories.NewCreditRepository(db.GetPool())
	usageRepo := repositories.NewUsageRepository(db.GetPool())

	limiters := ratelimit.NewRegistry()
	defer limiters.Stop()

	keyService := services.NewKeyService(keyRepo, encryptor, analyticsService)
	creditsService := services.NewCreditsService(keyRepo, creditRepo, analyticsService)
	statsService := services.NewStatsService(keyRepo, usageRepo)
	usageService := services.NewUsageService(keyRepo, usageRepo, limiters)

	if cfg.InternalAPIToken == "" {
		log.Warn().Msg("INTERNAL_API_TOKEN not set - usage ingest disabled")
	}

	// Create Gin router
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	// Setup routes
	setupRoutes(router, db, limiters, keyService, creditsService, statsService, usageService, cfg)

	// Create HTTP server with timeouts (G112: protect from Slowloris attack)
	srv := &http.Server{
		Addr:              ":" + formatPort(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown with timeout
	ctx, cancel = context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server shut down successfully")
}

func setupRoutes(router *gin.Engine, db *database.Database, limiters *ratelimit.Registry, keyService *services.KeyService, creditsService *services.CreditsService, statsService *services.StatsService, usageService *services.UsageService, cfg *config.Config) {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	llmKeyHandler := handlers.NewLLMKeyHandler(keyService, creditsService, statsService, cfg.RequestTimeout)
	usageHandler := handlers.NewUsageHandler(usageService, cfg.RequestTimeout)

	// Health check endpoints
	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/ready", healthHandler.HandleReady)
	router.GET("/info", healthHandler.HandleInfo)

	// Pricing is public; registered before the JWT group so /:id does not catch it
	router.GET("/api/llm-keys/pricing/info",
		middleware.NewIPRateLimitingMiddleware(limiters, middleware.RateLimitConfig{}),
		handlers.HandlePricingInfo)

	// Key management (JWT)
	keys := router.Group("/api/llm-keys")
	keys.Use(middleware.UserAuthMiddleware())
	keys.Use(middleware.NewRateLimitingMiddleware(limiters, middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
	}))
	llmKeyHandler.RegisterRoutes(keys)

	// Usage ingest from the proxy (shared token; 404 when unset)
	router.POST("/internal/usage",
		middleware.InternalTokenMiddleware(cfg.InternalAPIToken),
		usageHandler.HandleReportUsage)
}

func corsConfig(allowed string) cors.Config {
	origins := make(map[string]bool)
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}
	if len(origins) == 0 {
		for _, o := range devOrigins {
			origins[o] = true
		}
	}

	return cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return origins[origin]
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

func formatPort(port int) string {
	return fmt.Sprintf("%d", port)
}
