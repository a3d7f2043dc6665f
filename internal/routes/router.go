package routes

import (
	"net/http"

	"firmware-ota-server/internal/config"
	"firmware-ota-server/internal/delivery/http/handler"
	"firmware-ota-server/internal/infrastructure/database/postgres"
	"firmware-ota-server/internal/logger"
	"firmware-ota-server/internal/middleware"

	"github.com/gin-gonic/gin"
)

// multipart framing on top of the binary itself
const uploadOverhead = 1 << 20

func SetupRoutes(cfg *config.Config, db *postgres.DB, firmwareHandler *handler.FirmwareHandler) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware in order: recovery, request ID, logging, security headers,
	// CORS, general rate limit. Body size limits are applied per group below
	// so the upload route can accept a full firmware image.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RateLimitMiddleware(cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst))

	router.GET("/health", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "Database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Service is running",
		})
	})

	api := router.Group("/api")
	{
		public := api.Group("")
		public.Use(middleware.RequestSizeLimitMiddleware(middleware.DefaultMaxRequestSize))
		firmwareHandler.RegisterRoutes(public)

		admin := api.Group("")
		admin.Use(middleware.AdminAuthMiddleware(&cfg.Admin))
		admin.Use(middleware.RequestSizeLimitMiddleware(cfg.Firmware.MaxSize + uploadOverhead))
		firmwareHandler.RegisterAdminRoutes(admin)
	}

	logger.Info("All routes initialized")
	return router
}
