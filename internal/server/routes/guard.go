// Package routes 按业务域拆分路由注册。
package routes

import (
	"github.com/Wei-Shaw/fetchguard/internal/handler"
	"github.com/Wei-Shaw/fetchguard/internal/server/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterGuardRoutes 注册业务 API 路由（需要 API key 认证，吃限流）。
func RegisterGuardRoutes(
	v1 *gin.RouterGroup,
	h *handler.Handlers,
	apiKeyAuth middleware.APIKeyAuthMiddleware,
	rateLimit middleware.RateLimitMiddleware,
) {
	if h.Check == nil || h.Fetch == nil || h.Archive == nil {
		return
	}

	guarded := v1.Group("")
	guarded.Use(gin.HandlerFunc(apiKeyAuth))
	guarded.Use(gin.HandlerFunc(rateLimit))
	{
		guarded.POST("/check", h.Check.Check)
		guarded.POST("/check/batch", h.Check.BatchCheck)
		guarded.POST("/quick-check", h.Check.QuickCheck)
		guarded.POST("/fetch", h.Fetch.Fetch)
		guarded.POST("/archive", h.Archive.Archive)
	}
}
