package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/logger"
	"github.com/Domenick1991/appointments/internal/service/catalog"
)

type Dependencies struct {
	Bookings     BookingUseCase
	Availability AvailabilityUseCase
	Catalog      catalog.CatalogUseCase
	Inventory    InventoryUseCase
	Activity     ActivityUseCase
	Tokens       TokenService
	Logger       *logger.Logger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Checks run on every /healthz; any failure turns the answer into 503.
	Checks map[string]HealthCheck
}

type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

func healthz(checks map[string]HealthCheck, logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
				logg.Warn(logg.WithFields(ctx, map[string]any{"check": name, "error": err.Error()}), "health check failed")
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// NewRouter mounts every handler under /api/v1.
func NewRouter(deps Dependencies) *gin.Engine {
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(logg), AccessLog(logg))

	router.GET("/healthz", healthz(deps.Checks, logg))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := router.Group("/api/v1")
	NewBookingHandler(deps.Bookings, deps.Tokens).Register(v1.Group("/bookings"))
	NewCatalogHandler(deps.Catalog, deps.Availability).Register(v1)
	NewInventoryHandler(deps.Inventory, deps.Activity).Register(v1)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": errorBody{Code: string(apperr.CodeNotFound), Message: "route not found"}})
	})
	return router
}
