package routes

import (
	"github.com/Wei-Shaw/fetchguard/internal/handler"
	"github.com/Wei-Shaw/fetchguard/internal/server/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterAdminRoutes 注册管理面路由。login 开放，其余走 JWT 认证。
func RegisterAdminRoutes(
	root *gin.RouterGroup,
	h *handler.Handlers,
	adminAuth middleware.AdminAuthMiddleware,
) {
	if h.Admin == nil {
		return
	}

	root.POST("/login", h.Admin.Auth.Login)

	protected := root.Group("")
	protected.Use(gin.HandlerFunc(adminAuth))
	{
		protected.GET("/pins", h.Admin.Pin.List)
		protected.POST("/pins", h.Admin.Pin.Upsert)
		protected.DELETE("/pins/:hostname", h.Admin.Pin.Remove)
		protected.POST("/pins/import", h.Admin.Pin.Import)
		protected.POST("/pins/reload", h.Admin.Pin.Reload)
		protected.GET("/system", h.Admin.System.Info)
	}
}
