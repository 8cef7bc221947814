package http

import (
	"log/slog"
	"time"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/config"
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = 32 << 20

	router.Use(RecoveryMiddleware())
	router.Use(RequestLogger(logger))

	router.GET("/health", handler.HealthCheck)

	limiter := NewIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, 10*time.Minute)

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(limiter))
	{
		descriptions := v1.Group("/descriptions")
		{
			descriptions.POST("/parse", handler.ParseDescription)
			descriptions.POST("/parse-batch", handler.ParseDescriptionBatch)
		}

		v1.POST("/ingest", handler.IngestUpload)

		batches := v1.Group("/batches")
		{
			batches.GET("/:id", handler.GetBatch)
			batches.GET("/:id/shipments", handler.ListShipments)
			batches.GET("/:id/export", handler.DownloadExport)
		}
	}

	return router
}
