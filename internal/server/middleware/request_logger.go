package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Wei-Shaw/fetchguard/internal/pkg/logger"
)

// RequestLoggerMiddleware 为每个请求分配 request id 并输出访问日志。
type RequestLoggerMiddleware gin.HandlerFunc

const requestIDHeader = "X-Request-ID"

// NewRequestLoggerMiddleware 沿用上游带来的 X-Request-ID，没有就生成一个。
func NewRequestLoggerMiddleware() RequestLoggerMiddleware {
	return RequestLoggerMiddleware(func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		logger.L().Info("http.access",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", requestID),
		)
	})
}
