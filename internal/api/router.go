package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"door-access-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, rateLimitPerSec float64, cacheTTL time.Duration) *gin.Engine {
	r := gin.Default()

	if rateLimitPerSec <= 0 {
		rateLimitPerSec = 50
	}
	rateLimiter := mw.RateLimiter(rate.Limit(rateLimitPerSec), int(rateLimitPerSec))

	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Second
	}
	cacheStore := cache.New(cacheTTL, 10*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Decision path, called by the boards themselves.
		api.POST("/authorize", handler.Authorize)
		api.POST("/boards/:id/heartbeat", handler.Heartbeat)

		// Status display. Short-lived cache; these are read-only.
		api.GET("/boards", caching, handler.GetBoards)
		api.GET("/doors", caching, handler.GetDoors)
		api.GET("/doors/:id/mode", handler.GetDoorMode)
		api.GET("/access_logs", handler.GetAccessLogs)

		// Emergency overrides.
		api.POST("/boards/:id/emergency", handler.SetBoardEmergency)
		api.DELETE("/boards/:id/emergency", handler.ClearBoardEmergency)
		api.POST("/doors/:id/override", handler.SetDoorOverride)
		api.DELETE("/doors/:id/override", handler.ClearDoorOverride)

		// Temp codes.
		api.GET("/temp_codes", handler.GetTempCodes)
		api.POST("/temp_codes", handler.CreateTempCode)
		api.POST("/temp_codes/:id/activate", handler.ActivateTempCode)
		api.POST("/temp_codes/:id/deactivate", handler.DeactivateTempCode)

		// User roster.
		api.POST("/users", handler.CreateUser)
		api.POST("/users/:id/credentials", handler.CreateCredential)

		// Operator push alerts.
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
