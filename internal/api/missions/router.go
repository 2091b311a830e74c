package missions

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aimd54/travelquest-rewards/pkg/logger"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterConfig configures the HTTP router.
type RouterConfig struct {
	MetricsEnabled bool
	MetricsPath    string
	HealthChecks   map[string]HealthCheck
}

// NewRouter builds the gin engine with every API route, health, and metrics.
func NewRouter(h *Handler, cfg RouterConfig, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(log), Metrics())

	router.GET("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1")
	api.POST("/missions/:id/complete", h.CompleteMission)
	api.GET("/badges", h.GetBadgeCatalog)
	api.GET("/badges/:id", h.GetBadge)
	api.GET("/leaderboard", h.GetLeaderboard)
	api.GET("/users/:id/badges", h.GetUserBadges)
	api.PUT("/users/:id/title", h.SetUserTitle)
	api.GET("/users/:id/stats", h.GetUserStats)
	api.GET("/users/:id/notifications", h.GetNotifications)
	api.POST("/users/:id/notifications/:notificationId/read", h.MarkNotificationRead)

	return router
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "healthy"
		if status != http.StatusOK {
			overall = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status": overall,
			"checks": results,
			"time":   time.Now().UTC(),
		})
	}
}
