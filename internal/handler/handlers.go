// Package handler 实现对外 HTTP API 的 gin 处理器。
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"

	"github.com/Wei-Shaw/fetchguard/internal/handler/admin"
	infraerrors "github.com/Wei-Shaw/fetchguard/internal/pkg/errors"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/response"
	"github.com/Wei-Shaw/fetchguard/internal/service"
)

// ProviderSet is handler providers.
var ProviderSet = wire.NewSet(
	NewCheckHandler,
	NewFetchHandler,
	NewArchiveHandler,
	NewHealthHandler,
	admin.NewAuthHandler,
	admin.NewPinHandler,
	admin.NewSystemHandler,
	wire.Struct(new(AdminHandlers), "*"),
	wire.Struct(new(Handlers), "*"),
)

// BuildInfo 由构建期 ldflags 注入。
type BuildInfo struct {
	Version   string
	BuildType string
}

// Handlers 聚合全部处理器，供路由注册使用。
type Handlers struct {
	Check   *CheckHandler
	Fetch   *FetchHandler
	Archive *ArchiveHandler
	Health  *HealthHandler
	Admin   *AdminHandlers
}

// AdminHandlers 聚合管理面处理器。
type AdminHandlers struct {
	Auth   *admin.AuthHandler
	Pin    *admin.PinHandler
	System *admin.SystemHandler
}

// HealthHandler 提供存活探针。
type HealthHandler struct {
	buildInfo BuildInfo
	archive   *service.ArchiveService
	startedAt time.Time
}

func NewHealthHandler(buildInfo BuildInfo, archive *service.ArchiveService) *HealthHandler {
	return &HealthHandler{
		buildInfo: buildInfo,
		archive:   archive,
		startedAt: time.Now(),
	}
}

// Healthz 返回进程存活状态与构建信息
// GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"version":         h.buildInfo.Version,
		"build_type":      h.buildInfo.BuildType,
		"uptime_seconds":  int64(time.Since(h.startedAt).Seconds()),
		"archive_enabled": h.archive.Enabled(),
	})
}

// transportErrorResponse 把传输层类型化错误映射为对外状态码：
// 超时类映射 504，决策误用映射 500，其余运行期失败统一 502。
func transportErrorResponse(c *gin.Context, err error) {
	var terr *service.TransportError
	if !errors.As(err, &terr) {
		response.ErrorFrom(c, err)
		return
	}
	code := http.StatusBadGateway
	switch terr.Code {
	case service.TransportConnectTimeout, service.TransportReadTimeout:
		code = http.StatusGatewayTimeout
	case service.TransportInvalidDecision:
		code = http.StatusInternalServerError
	}
	response.ErrorFrom(c, infraerrors.New(code, terr.Code, terr.Message))
}
