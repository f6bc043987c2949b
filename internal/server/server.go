// Package server 组装 gin 引擎与 HTTP 服务。
package server

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"

	"github.com/Wei-Shaw/fetchguard/internal/config"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewRouter, NewHTTPServer)

// NewHTTPServer 基于配置构建 http.Server。
func NewHTTPServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
