package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/Wei-Shaw/fetchguard/internal/config"
	infraerrors "github.com/Wei-Shaw/fetchguard/internal/pkg/errors"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/httputil"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/pinning"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/response"
	"github.com/Wei-Shaw/fetchguard/internal/repository"
)

// 导入接口的请求体上限。pins 文件都是小文件，1MB 足够宽裕。
const maxPinsImportBytes = 1 << 20

// PinHandler manages the certificate pin store
type PinHandler struct {
	store    *repository.MemoryPinStore
	pinsFile string
}

// NewPinHandler creates a new pin management handler
func NewPinHandler(cfg *config.Config, store *repository.MemoryPinStore) *PinHandler {
	return &PinHandler{store: store, pinsFile: cfg.Pins.File}
}

// List returns every configured pin set
// GET /admin/pins
func (h *PinHandler) List(c *gin.Context) {
	sets := h.store.Snapshot()
	response.Success(c, gin.H{"pins": sets, "total": len(sets)})
}

// Upsert adds or replaces the pin set for a single hostname
// POST /admin/pins
func (h *PinHandler) Upsert(c *gin.Context) {
	var set pinning.PinSet
	if err := c.ShouldBindJSON(&set); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	if err := h.store.AddPins(&set); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, gin.H{"hostname": set.Hostname})
}

// Remove deletes the pin set for a hostname
// DELETE /admin/pins/:hostname
func (h *PinHandler) Remove(c *gin.Context) {
	hostname := c.Param("hostname")
	if hostname == "" {
		response.BadRequest(c, "hostname is required")
		return
	}
	if !h.store.RemovePins(hostname) {
		response.ErrorFrom(c, infraerrors.NotFound("PIN_SET_NOT_FOUND", "No pin set for hostname"))
		return
	}
	response.Success(c, gin.H{"hostname": hostname})
}

// Import replaces the whole store from a raw pins.yaml request body
// POST /admin/pins/import
func (h *PinHandler) Import(c *gin.Context) {
	body, err := httputil.ReadBody(c.Request, maxPinsImportBytes)
	if err != nil {
		response.BadRequest(c, "Failed to read request body: "+err.Error())
		return
	}
	sets, err := pinning.ParseBytes(body)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.ReplaceAll(sets); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, gin.H{"total": len(sets)})
}

// Reload re-reads the pins file configured at startup
// POST /admin/pins/reload
func (h *PinHandler) Reload(c *gin.Context) {
	if h.pinsFile == "" {
		response.ErrorFrom(c, infraerrors.BadRequest("PINS_FILE_NOT_CONFIGURED", "No pins file configured"))
		return
	}
	if err := h.store.LoadFromFile(h.pinsFile); err != nil {
		response.ErrorFrom(c, infraerrors.InternalServer("PINS_RELOAD_FAILED", err.Error()))
		return
	}
	response.Success(c, gin.H{"total": len(h.store.Snapshot())})
}
