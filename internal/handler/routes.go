package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chatops-labs/chatbot-api/pkg/config"
)

// RouterDeps bundles everything route registration needs.
type RouterDeps struct {
	Auth      *AuthHandler
	Chat      *ChatHandler
	Health    *HealthHandler
	Metrics   *MetricsHandler
	JWT       gin.HandlerFunc
	RateLimit gin.HandlerFunc
}

// RegisterRoutes mounts the API surface. Business endpoints live under the
// configured prefix; probes and metrics stay unversioned.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps RouterDeps) {
	r.GET("/live", deps.Health.Live)
	r.GET("/ready", deps.Health.Ready)
	r.GET("/health", deps.Health.Health)

	metrics := r.Group("/metrics")
	if cfg.Metrics.User != "" {
		metrics.Use(gin.BasicAuth(gin.Accounts{cfg.Metrics.User: cfg.Metrics.Password}))
	}
	metrics.GET("", deps.Metrics.Prometheus)

	api := r.Group(cfg.APIPrefix)

	users := api.Group("/users")
	if deps.RateLimit != nil {
		users.Use(deps.RateLimit)
	}
	users.POST("/register", deps.Auth.Register)
	users.POST("/login", deps.Auth.Login)
	users.POST("/refresh", deps.Auth.Refresh)
	users.POST("/logout", deps.JWT, deps.Auth.Logout)
	users.POST("/logout-all", deps.JWT, deps.Auth.LogoutAll)

	api.POST("/chat", deps.JWT, deps.Chat.Chat)
}
