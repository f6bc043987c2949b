package server

import (
	"github.com/gin-gonic/gin"

	"github.com/Wei-Shaw/fetchguard/internal/config"
	"github.com/Wei-Shaw/fetchguard/internal/handler"
	"github.com/Wei-Shaw/fetchguard/internal/server/middleware"
	"github.com/Wei-Shaw/fetchguard/internal/server/routes"
)

// NewRouter 构建完整路由表：/healthz 开放，/v1 吃 API key 认证与限流，
// /admin 走 JWT。
func NewRouter(
	cfg *config.Config,
	h *handler.Handlers,
	requestLogger middleware.RequestLoggerMiddleware,
	apiKeyAuth middleware.APIKeyAuthMiddleware,
	adminAuth middleware.AdminAuthMiddleware,
	rateLimit middleware.RateLimitMiddleware,
) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.HandlerFunc(requestLogger))

	engine.GET("/healthz", h.Health.Healthz)

	v1 := engine.Group("/v1")
	routes.RegisterGuardRoutes(v1, h, apiKeyAuth, rateLimit)

	adminGroup := engine.Group("/admin")
	routes.RegisterAdminRoutes(adminGroup, h, adminAuth)

	return engine
}
