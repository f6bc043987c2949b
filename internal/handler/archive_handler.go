package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Wei-Shaw/fetchguard/internal/domain"
	"github.com/Wei-Shaw/fetchguard/internal/handler/dto"
	infraerrors "github.com/Wei-Shaw/fetchguard/internal/pkg/errors"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/response"
	"github.com/Wei-Shaw/fetchguard/internal/service"
)

// ArchiveHandler 暴露抓取归档入口。
type ArchiveHandler struct {
	archive *service.ArchiveService
}

func NewArchiveHandler(archive *service.ArchiveService) *ArchiveHandler {
	return &ArchiveHandler{archive: archive}
}

// Archive 校验、抓取并把内容归档到 S3
// POST /v1/archive
func (h *ArchiveHandler) Archive(c *gin.Context) {
	var req dto.ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if !h.archive.Enabled() {
		response.ErrorFrom(c, infraerrors.ServiceUnavailable("ARCHIVE_DISABLED", "归档存储未启用"))
		return
	}

	ctx := domain.WithSource(c.Request.Context(), domain.SourceArchive)
	result, err := h.archive.Archive(ctx, req.URL, req.Options.ToService())
	if err != nil {
		if errors.Is(err, service.ErrArchiveDisabled) {
			response.ErrorFrom(c, infraerrors.ServiceUnavailable("ARCHIVE_DISABLED", "归档存储未启用"))
			return
		}
		transportErrorResponse(c, err)
		return
	}
	response.Success(c, result)
}
