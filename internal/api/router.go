package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/bayrakli/etap-backend/internal/cache"
	"github.com/bayrakli/etap-backend/internal/config"
	"github.com/bayrakli/etap-backend/internal/handler"
	"github.com/bayrakli/etap-backend/internal/middleware"
	"github.com/bayrakli/etap-backend/internal/repository"
	"github.com/bayrakli/etap-backend/internal/service"
)

// SetupRouter wires the read-only zone API. Background work started for the
// router stops when ctx is done.
func SetupRouter(ctx context.Context, cfg *config.Config, db *sqlx.DB, zoneCache cache.Cache) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	r.GET("/health", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Etap API is running",
		})
	})

	zoneService := service.NewZoneService(
		repository.NewZoneRepository(db),
		repository.NewBuildingRepository(db),
		repository.NewRunRepository(db),
		zoneCache,
	)
	zoneHandler := handler.NewZoneHandler(zoneService)

	v1 := r.Group("/api/v1")
	{
		etaps := v1.Group("/etaps")
		{
			etaps.GET("", zoneHandler.ListZones)
			etaps.GET("/:id", zoneHandler.GetZone)
			etaps.GET("/:id/buildings", zoneHandler.ListZoneBuildings)
		}

		v1.GET("/regions/:name/etaps", zoneHandler.GetRegionZones)
		v1.GET("/runs/latest", zoneHandler.GetLatestRun)
	}

	return r
}
