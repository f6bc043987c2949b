package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Wei-Shaw/fetchguard/internal/config"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/response"
)

// AdminAuthMiddleware 校验管理面 API 的 JWT。
type AdminAuthMiddleware gin.HandlerFunc

// NewAdminAuthMiddleware 验证 /admin/login 签发的 HS256 token。
// 管理面未配置完整时所有受保护接口统一返回 503。
func NewAdminAuthMiddleware(cfg *config.Config) AdminAuthMiddleware {
	return AdminAuthMiddleware(func(c *gin.Context) {
		if !cfg.AdminEnabled() {
			response.Abort(c, http.StatusServiceUnavailable, "Admin API is not configured")
			return
		}
		auth := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			response.Abort(c, http.StatusUnauthorized, "Authorization token is required")
			return
		}

		claims := &jwt.RegisteredClaims{}
		parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(cfg.Auth.JWTSecret), nil
		})
		if err != nil || !parsed.Valid {
			response.Abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if claims.Subject != cfg.Auth.AdminUsername {
			response.Abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set("admin_user", claims.Subject)
		c.Next()
	})
}
