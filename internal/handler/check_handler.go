package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Wei-Shaw/fetchguard/internal/config"
	"github.com/Wei-Shaw/fetchguard/internal/domain"
	"github.com/Wei-Shaw/fetchguard/internal/handler/dto"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/response"
	"github.com/Wei-Shaw/fetchguard/internal/service"
)

// CheckHandler 暴露决策引擎的校验入口。
type CheckHandler struct {
	guard        *service.Guard
	batch        *service.BatchService
	maxBatchURLs int
}

func NewCheckHandler(cfg *config.Config, guard *service.Guard, batch *service.BatchService) *CheckHandler {
	return &CheckHandler{
		guard:        guard,
		batch:        batch,
		maxBatchURLs: cfg.Guard.BatchMaxURLs,
	}
}

// Check 对单个 URL 做完整校验（域名会触发真实 DNS 解析）
// POST /v1/check
func (h *CheckHandler) Check(c *gin.Context) {
	var req dto.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	ctx := domain.WithSource(c.Request.Context(), domain.SourceAPI)
	dec := h.guard.Check(ctx, req.URL, req.Options.ToService())
	response.Success(c, dec)
}

// QuickCheck 同步预筛，不做 DNS 解析，结论仅供参考
// POST /v1/quick-check
func (h *CheckHandler) QuickCheck(c *gin.Context) {
	var req dto.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	result := h.guard.QuickCheck(req.URL, req.Options.ToService())
	response.Success(c, result)
}

// BatchCheck 批量校验，结果按输入顺序返回
// POST /v1/check/batch
func (h *CheckHandler) BatchCheck(c *gin.Context) {
	var req dto.BatchCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if len(req.URLs) > h.maxBatchURLs {
		response.BadRequest(c, fmt.Sprintf("单次最多 %d 个 URL", h.maxBatchURLs))
		return
	}
	ctx := domain.WithSource(c.Request.Context(), domain.SourceBatch)
	results := h.batch.CheckAll(ctx, req.URLs, req.Options.ToService())
	response.Success(c, dto.BatchCheckResponse{Results: results})
}
