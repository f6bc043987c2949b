package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Wei-Shaw/fetchguard/internal/config"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/logger"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/response"
	"github.com/Wei-Shaw/fetchguard/internal/service"
)

// RateLimitMiddleware 对业务 API 做每分钟固定窗口限流。
type RateLimitMiddleware gin.HandlerFunc

// NewRateLimitMiddleware 按调用方维度计数：有 API key 用 key，否则用客户端 IP。
// Redis 不可用时放行并记警告，限流属于保护手段而不是硬依赖。
func NewRateLimitMiddleware(cfg *config.Config, cache service.RateLimitCache) RateLimitMiddleware {
	enabled := cfg.RateLimit.Enabled && cache != nil
	limit := cfg.RateLimit.PerMinute
	return RateLimitMiddleware(func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		clientKey := c.GetString("api_key")
		if clientKey == "" {
			clientKey = c.ClientIP()
		}
		count, err := cache.IncrementRequests(c.Request.Context(), clientKey)
		if err != nil {
			logger.L().Warn("ratelimit.increment_failed", zap.Error(err))
			c.Next()
			return
		}
		if count > limit {
			response.Abort(c, http.StatusTooManyRequests, "Rate limit exceeded, try again later")
			return
		}
		c.Next()
	})
}
