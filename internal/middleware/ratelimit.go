package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chatops-labs/chatbot-api/pkg/config"
)

// RateLimitProbe counts requests per client IP in a fixed Redis window and
// logs when the threshold is exceeded. It never rejects: enforcement is out
// of scope, this only gives operators visibility into brute-force attempts
// on the auth routes.
func RateLimitProbe(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if !cfg.Enabled || client == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s:%s", c.FullPath(), c.ClientIP())
		ctx := c.Request.Context()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Debug("rate limit probe unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(ctx, key, cfg.Window)
		}
		if cfg.Threshold > 0 && count > int64(cfg.Threshold) {
			logger.Warn("rate limit threshold exceeded",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.FullPath()),
				zap.Int64("count", count),
				zap.Duration("window", cfg.Window),
			)
		}

		c.Next()
	}
}
