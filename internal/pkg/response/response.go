// Package response 提供统一的 HTTP 响应信封与写入辅助。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wei-Shaw/fetchguard/internal/pkg/errors"
)

// Response 是统一的响应信封：{ code, reason, message, metadata, data }。
type Response struct {
	Code     int               `json:"code"`
	Reason   string            `json:"reason,omitempty"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Data     any               `json:"data,omitempty"`
}

// Success 写入 200 成功信封。
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Data: data})
}

// Error 写入指定状态码与消息的错误信封。
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{Code: code, Message: message})
}

// ErrorFrom 从应用错误推导状态码、reason 与消息后写入错误信封。
func ErrorFrom(c *gin.Context, err error) {
	code, status := errors.ToHTTP(err)
	c.JSON(code, Response{
		Code:     int(status.Code),
		Reason:   status.Reason,
		Message:  status.Message,
		Metadata: status.Metadata,
	})
}

// BadRequest 是 Error(c, 400, message) 的简写。
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 是 Error(c, 401, message) 的简写。
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// Abort 写入错误信封并终止后续 handler 链，供中间件使用。
func Abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{Code: code, Message: message})
}
