package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/limitx/guardian/internal/guardian/model"
	"github.com/limitx/guardian/internal/guardian/service"
	"go.uber.org/zap"
)

// SyncHandler handles chain submissions from devices.
type SyncHandler struct {
	svc    *service.SyncService
	logger *zap.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(svc *service.SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{svc: svc, logger: logger}
}

// Register registers the sync route on the given router group.
func (h *SyncHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/sync", h.Sync)
}

// Sync handles POST /sync, accepting a full chain for a device key.
func (h *SyncHandler) Sync(c *gin.Context) {
	var req model.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.svc.Sync(c.Request.Context(), &req)
	if err != nil {
		RecordSync(false, 0)
		writeError(c, h.logger, err)
		return
	}

	RecordSync(true, summary.BlockCount)
	c.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"violations_count": summary.BlockCount,
		"timestamp":        summary.Timestamp,
	})
}
