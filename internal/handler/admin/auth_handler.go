// Package admin 实现管理面 API 的 gin 处理器。
package admin

import (
	"crypto/subtle"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Wei-Shaw/fetchguard/internal/config"
	infraerrors "github.com/Wei-Shaw/fetchguard/internal/pkg/errors"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/response"
)

// AuthHandler handles admin authentication
type AuthHandler struct {
	cfg *config.Config
}

// NewAuthHandler creates a new admin auth handler
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

// LoginRequest represents the admin login payload
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies admin credentials and issues a signed token
// POST /admin/login
func (h *AuthHandler) Login(c *gin.Context) {
	if !h.cfg.AdminEnabled() {
		response.ErrorFrom(c, infraerrors.ServiceUnavailable("ADMIN_DISABLED", "Admin API is not configured"))
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	// 即使用户名不匹配也走一次 bcrypt，避免用响应耗时探测有效用户名。
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.Auth.AdminUsername)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(h.cfg.Auth.AdminPasswordHash), []byte(req.Password)) == nil
	if !userOK || !passOK {
		response.Unauthorized(c, "Invalid username or password")
		return
	}

	ttl := time.Duration(h.cfg.Auth.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   req.Username,
		Issuer:    "fetchguard",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.Auth.JWTSecret))
	if err != nil {
		response.ErrorFrom(c, infraerrors.InternalServer("TOKEN_SIGN_FAILED", "Failed to sign token").WithCause(err))
		return
	}

	response.Success(c, gin.H{"token": token, "expires_at": now.Add(ttl).Unix()})
}
