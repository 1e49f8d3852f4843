package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HealthHandler serves the liveness, readiness, and health probes.
type HealthHandler struct {
	db     *sqlx.DB
	cache  *redis.Client
	logger *zap.Logger
}

// NewHealthHandler constructs a HealthHandler. Both dependencies may be nil,
// in which case the corresponding check is skipped.
func NewHealthHandler(db *sqlx.DB, cache *redis.Client, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{db: db, cache: cache, logger: logger}
}

// Live responds 200 whenever the process is running.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Ready responds 200 when the backing stores answer, 503 otherwise.
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.pingDB(c); err != nil {
		h.logger.Error("readiness check database failure", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	if err := h.pingCache(c); err != nil {
		h.logger.Error("readiness check redis failure", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Health reports per-dependency status with an overall verdict.
func (h *HealthHandler) Health(c *gin.Context) {
	dbStatus := "ok"
	if err := h.pingDB(c); err != nil {
		dbStatus = "down"
		h.logger.Error("health check database failure", zap.Error(err))
	}

	cacheStatus := "ok"
	if err := h.pingCache(c); err != nil {
		cacheStatus = "down"
		h.logger.Error("health check redis failure", zap.Error(err))
	}

	status := "ok"
	if dbStatus != "ok" || cacheStatus != "ok" {
		status = "error"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "db": dbStatus, "redis": cacheStatus})
}

func (h *HealthHandler) pingDB(c *gin.Context) error {
	if h.db == nil {
		return nil
	}
	return h.db.PingContext(c.Request.Context())
}

func (h *HealthHandler) pingCache(c *gin.Context) error {
	if h.cache == nil {
		return nil
	}
	return h.cache.Ping(c.Request.Context()).Err()
}
