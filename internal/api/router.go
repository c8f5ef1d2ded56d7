package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"timetable-backend/config"
	"timetable-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestID(), mw.Logger(log.Named("http")))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	rateLimiter := mw.RateLimiter(mw.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, 10*time.Minute))

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		schedule := api.Group("/schedule")
		schedule.GET("", h.GetSchedule)
		schedule.POST("/reload", h.ReloadSchedule)
		schedule.POST("/more", h.LoadMore)
		schedule.POST("/previous", h.LoadPreviousWeek)
		schedule.PUT("/filter", h.PutFilter)
		schedule.POST("/positions", h.PostPosition)

		api.GET("/offline", h.GetOffline)
		api.GET("/search", caching, h.GetSearch)

		api.GET("/preferences", h.GetPreferences)
		api.PUT("/preferences/days-margin", h.PutDaysMargin)
		api.PUT("/preferences/identity", h.PutDefaultIdentity)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
