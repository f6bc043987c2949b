package routes

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Wei-Shaw/fetchguard/internal/handler"
	"github.com/Wei-Shaw/fetchguard/internal/handler/admin"
	"github.com/Wei-Shaw/fetchguard/internal/server/middleware"
)

func TestRegisterAdminRoutes_RegistersPinManagementRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	root := router.Group("/admin")
	handlers := &handler.Handlers{
		Admin: &handler.AdminHandlers{
			Auth:   &admin.AuthHandler{},
			Pin:    &admin.PinHandler{},
			System: &admin.SystemHandler{},
		},
	}
	adminAuth := middleware.AdminAuthMiddleware(func(c *gin.Context) { c.Next() })

	require.NotPanics(t, func() {
		RegisterAdminRoutes(root, handlers, adminAuth)
	})

	require.True(t, hasRoute(router, "POST", "/admin/login"))
	require.True(t, hasRoute(router, "GET", "/admin/pins"))
	require.True(t, hasRoute(router, "POST", "/admin/pins"))
	require.True(t, hasRoute(router, "DELETE", "/admin/pins/:hostname"))
	require.True(t, hasRoute(router, "POST", "/admin/pins/import"))
	require.True(t, hasRoute(router, "POST", "/admin/pins/reload"))
	require.True(t, hasRoute(router, "GET", "/admin/system"))
}

func TestRegisterAdminRoutes_SkipsWithoutAdminHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	root := router.Group("/admin")
	adminAuth := middleware.AdminAuthMiddleware(func(c *gin.Context) { c.Next() })

	require.NotPanics(t, func() {
		RegisterAdminRoutes(root, &handler.Handlers{}, adminAuth)
	})
	require.False(t, hasRoute(router, "POST", "/admin/login"))
}

func hasRoute(router *gin.Engine, method, path string) bool {
	for _, route := range router.Routes() {
		if route.Method == method && route.Path == path {
			return true
		}
	}
	return false
}
