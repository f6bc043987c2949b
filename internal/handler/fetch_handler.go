package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Wei-Shaw/fetchguard/internal/domain"
	"github.com/Wei-Shaw/fetchguard/internal/handler/dto"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/response"
	"github.com/Wei-Shaw/fetchguard/internal/service"
)

// FetchHandler 暴露受控抓取入口。
type FetchHandler struct {
	fetch *service.FetchService
}

func NewFetchHandler(fetch *service.FetchService) *FetchHandler {
	return &FetchHandler{fetch: fetch}
}

// Fetch 校验并抓取 URL，重定向逐跳过守卫
// POST /v1/fetch
func (h *FetchHandler) Fetch(c *gin.Context) {
	var req dto.FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	var reqOpts *service.RequestOptions
	if req.Method != "" || len(req.Headers) > 0 || req.Body != "" {
		reqOpts = &service.RequestOptions{
			Method:  req.Method,
			Headers: req.Headers,
		}
		if req.Body != "" {
			reqOpts.Body = []byte(req.Body)
		}
	}

	ctx := domain.WithSource(c.Request.Context(), domain.SourceFetch)
	outcome, err := h.fetch.Fetch(ctx, req.URL, req.Options.ToService(), reqOpts)
	if err != nil {
		transportErrorResponse(c, err)
		return
	}
	response.Success(c, dto.FetchResponseFromOutcome(outcome))
}
