// Package middleware 提供 gin 中间件。各中间件用独立的具名函数类型导出，
// 便于 wire 按类型注入到路由注册函数。
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Wei-Shaw/fetchguard/internal/config"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/response"
)

// APIKeyAuthMiddleware 校验业务 API 的调用方密钥。
type APIKeyAuthMiddleware gin.HandlerFunc

// NewAPIKeyAuthMiddleware 基于配置里的 api_keys 白名单做认证。
// 未配置任何 key 时视为开放模式，直接放行。
func NewAPIKeyAuthMiddleware(cfg *config.Config) APIKeyAuthMiddleware {
	keys := cfg.Auth.APIKeys
	return APIKeyAuthMiddleware(func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}
		presented := extractAPIKey(c)
		if presented == "" {
			response.Abort(c, http.StatusUnauthorized, "API key is required")
			return
		}
		for _, key := range keys {
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
				c.Set("api_key", key)
				c.Next()
				return
			}
		}
		response.Abort(c, http.StatusUnauthorized, "Invalid API key")
	})
}

// extractAPIKey 依次尝试 Authorization: Bearer 与 X-API-Key。
func extractAPIKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(c.GetHeader("X-API-Key"))
}
