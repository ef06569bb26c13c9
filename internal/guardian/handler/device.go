package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/limitx/guardian/internal/guardian/service"
	"go.uber.org/zap"
)

// DeviceHandler serves the read-side views of a stored chain.
type DeviceHandler struct {
	svc    *service.InsightService
	logger *zap.Logger
}

// NewDeviceHandler creates a DeviceHandler.
func NewDeviceHandler(svc *service.InsightService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{svc: svc, logger: logger}
}

// Register registers device read routes on the given router group. session
// may be nil to leave reads anonymous.
func (h *DeviceHandler) Register(rg *gin.RouterGroup, session gin.HandlerFunc) {
	if session == nil {
		session = func(c *gin.Context) { c.Next() }
	}
	rg.GET("/dashboard/:key", session, h.Dashboard)
	rg.GET("/stats/:key", session, h.Stats)
	rg.GET("/verify/:key", session, h.Verify)
	rg.GET("/profile/:key", session, h.Profile)
}

// Dashboard handles GET /dashboard/:key, returning violations newest first.
func (h *DeviceHandler) Dashboard(c *gin.Context) {
	data, err := h.svc.Dashboard(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Stats handles GET /stats/:key, returning per-app, per-keyword, and hourly counters.
func (h *DeviceHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Verify handles GET /verify/:key by re-verifying the stored chain.
func (h *DeviceHandler) Verify(c *gin.Context) {
	result, err := h.svc.Verify(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Profile handles GET /profile/:key, returning the aggregated behavioral profile.
func (h *DeviceHandler) Profile(c *gin.Context) {
	profile, err := h.svc.Profile(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
