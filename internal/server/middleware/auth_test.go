package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Wei-Shaw/fetchguard/internal/config"
)

func setupAPIKeyRouter(keys []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Auth.APIKeys = keys

	router := gin.New()
	router.Use(gin.HandlerFunc(NewAPIKeyAuthMiddleware(cfg)))
	router.GET("/probe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"api_key": c.GetString("api_key")})
	})
	return router
}

func getProbe(router *gin.Engine, mutate func(*http.Request)) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if mutate != nil {
		mutate(req)
	}
	router.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyAuth_OpenModeWithoutKeys(t *testing.T) {
	router := setupAPIKeyRouter(nil)

	rec := getProbe(router, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_BearerToken(t *testing.T) {
	router := setupAPIKeyRouter([]string{"sk-alpha", "sk-beta"})

	rec := getProbe(router, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer sk-beta")
	})
	require.Equal(t, http.StatusOK, rec.Code)
	// 命中的 key 写进上下文，下游的限流按 key 维度计数
	require.Contains(t, rec.Body.String(), "sk-beta")
}

func TestAPIKeyAuth_XAPIKeyHeader(t *testing.T) {
	router := setupAPIKeyRouter([]string{"sk-alpha"})

	rec := getProbe(router, func(r *http.Request) {
		r.Header.Set("X-API-Key", "sk-alpha")
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_Rejections(t *testing.T) {
	router := setupAPIKeyRouter([]string{"sk-alpha"})

	t.Run("missing key", func(t *testing.T) {
		rec := getProbe(router, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "API key is required")
	})

	t.Run("unknown key", func(t *testing.T) {
		rec := getProbe(router, func(r *http.Request) {
			r.Header.Set("X-API-Key", "sk-wrong")
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "Invalid API key")
	})

	t.Run("bearer prefix required", func(t *testing.T) {
		// Authorization 头存在但不是 Bearer 格式时退回 X-API-Key，两者都没有则拒绝
		rec := getProbe(router, func(r *http.Request) {
			r.Header.Set("Authorization", "Basic c2stYWxwaGE=")
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
