package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/limitx/guardian/internal/devicekey"
	"github.com/limitx/guardian/internal/identity"
	"go.uber.org/zap"
)

// SessionHandler mints guardian dashboard session tokens. A token scopes a
// dashboard client to one device key; it adds no identity layer beyond the
// key itself, which is already the read capability.
type SessionHandler struct {
	issuer    *identity.SessionIssuer
	validator *devicekey.Validator
	logger    *zap.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(issuer *identity.SessionIssuer, validator *devicekey.Validator, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{issuer: issuer, validator: validator, logger: logger}
}

// Register registers the session route on the given router group.
func (h *SessionHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/session", h.CreateSession)
}

// sessionRequest is the payload for POST /session.
type sessionRequest struct {
	DeviceKey string `json:"device_key" binding:"required"`
}

// CreateSession handles POST /session, issuing a token for a well-formed key.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validator.Validate(req.DeviceKey); err != nil {
		writeError(c, h.logger, err)
		return
	}

	token, err := h.issuer.Issue(req.DeviceKey)
	if err != nil {
		h.logger.Error("issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session token"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

// OptionalSession returns middleware that accepts anonymous requests but,
// when a bearer token is present, requires it to be valid and scoped to the
// :key route parameter. Older dashboard builds send no token at all; a
// token for the wrong device is always rejected.
func OptionalSession(issuer *identity.SessionIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed authorization header"})
			return
		}

		claims, err := issuer.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}
		if key := c.Param("key"); key != "" && claims.DeviceKey != key {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "session token is scoped to a different device"})
			return
		}
		c.Set("guardian_session_claims", claims)
		c.Next()
	}
}
