package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/limitx/guardian/internal/guardian/model"
	"github.com/limitx/guardian/internal/guardian/service"
	"go.uber.org/zap"
)

// ReportHandler serves narrative reports, screen-time policies, and
// conversation starters.
type ReportHandler struct {
	svc    *service.InsightService
	logger *zap.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(svc *service.InsightService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, logger: logger}
}

// Register registers report and policy routes on the given router group.
// session may be nil to leave the routes anonymous.
func (h *ReportHandler) Register(rg *gin.RouterGroup, session gin.HandlerFunc) {
	if session == nil {
		session = func(c *gin.Context) { c.Next() }
	}
	rg.POST("/reports/:key", session, h.GenerateReport)
	rg.GET("/reports/:key", session, h.LatestReport)
	rg.GET("/policy/:key", session, h.GetPolicy)
	rg.PUT("/policy/:key", session, h.SetPolicy)
	rg.GET("/conversation-starters/:key", session, h.Starters)
}

// GenerateReport handles POST /reports/:key, building and storing a new report.
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	report, err := h.svc.GenerateReport(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	RecordReport(report.Source)
	c.JSON(http.StatusCreated, report)
}

// LatestReport handles GET /reports/:key, returning the most recent stored report.
func (h *ReportHandler) LatestReport(c *gin.Context) {
	report, err := h.svc.LatestReport(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// policyRequest is the payload for PUT /policy/:key.
type policyRequest struct {
	DailyLimitMinutes   int    `json:"daily_limit_minutes" binding:"required,min=0"`
	WeekendLimitMinutes int    `json:"weekend_limit_minutes" binding:"required,min=0"`
	Bedtime             string `json:"bedtime" binding:"required"`
}

// GetPolicy handles GET /policy/:key, returning the current policy and history.
func (h *ReportHandler) GetPolicy(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")

	policy, err := h.svc.Policy(ctx, key)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	history, err := h.svc.PolicyHistory(ctx, key, 20)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if history == nil {
		history = []*model.Policy{}
	}
	c.JSON(http.StatusOK, gin.H{
		"current_policy": policy,
		"policy_history": history,
	})
}

// SetPolicy handles PUT /policy/:key, appending a new policy version.
func (h *ReportHandler) SetPolicy(c *gin.Context) {
	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policy := &model.Policy{
		DeviceKey:           c.Param("key"),
		DailyLimitMinutes:   req.DailyLimitMinutes,
		WeekendLimitMinutes: req.WeekendLimitMinutes,
		Bedtime:             req.Bedtime,
	}
	if err := h.svc.SetPolicy(c.Request.Context(), policy); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"new_policy": policy,
	})
}

// Starters handles GET /conversation-starters/:key.
func (h *ReportHandler) Starters(c *gin.Context) {
	starters, err := h.svc.Starters(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_starters": starters,
		"count":                 len(starters),
	})
}
