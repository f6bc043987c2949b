package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/Wei-Shaw/fetchguard/internal/config"
)

const adminTestSecret = "middleware-test-secret-0123456789"

func adminAuthConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = adminTestSecret
	cfg.Auth.AdminUsername = "admin"
	cfg.Auth.AdminPasswordHash = "$2a$04$notactuallycheckedbyauthmw"
	return cfg
}

func setupAdminAuthRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.HandlerFunc(NewAdminAuthMiddleware(cfg)))
	router.GET("/admin/probe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin_user": c.GetString("admin_user")})
	})
	return router
}

func signAdminToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "fetchguard",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func getAdminProbe(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/probe", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	router.ServeHTTP(rec, req)
	return rec
}

func TestAdminAuth_ValidToken(t *testing.T) {
	router := setupAdminAuthRouter(adminAuthConfig())
	token := signAdminToken(t, adminTestSecret, "admin", time.Hour)

	rec := getAdminProbe(router, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"admin_user":"admin"`)
}

func TestAdminAuth_Rejections(t *testing.T) {
	router := setupAdminAuthRouter(adminAuthConfig())

	tests := []struct {
		name          string
		authorization string
	}{
		{"missing header", ""},
		{"not bearer", "Token abc"},
		{"empty bearer", "Bearer   "},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signAdminToken(t, "another-secret-another-secret!!", "admin", time.Hour)},
		{"expired", "Bearer " + signAdminToken(t, adminTestSecret, "admin", -time.Minute)},
		{"wrong subject", "Bearer " + signAdminToken(t, adminTestSecret, "intruder", time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := getAdminProbe(router, tt.authorization)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAdminAuth_RejectsUnsignedAlg(t *testing.T) {
	router := setupAdminAuthRouter(adminAuthConfig())

	// alg=none 的 token 连签名校验都到不了，必须在方法检查就挡下
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	rec := getAdminProbe(router, "Bearer "+unsigned)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuth_DisabledReturns503(t *testing.T) {
	router := setupAdminAuthRouter(&config.Config{})

	rec := getAdminProbe(router, "Bearer whatever")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "Admin API is not configured")
}
