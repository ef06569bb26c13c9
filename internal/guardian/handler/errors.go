// Package handler exposes the guardian service over HTTP using Gin.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/limitx/guardian/internal/devicekey"
	"github.com/limitx/guardian/internal/guardian/repository"
	"github.com/limitx/guardian/internal/guardian/service"
	"github.com/limitx/guardian/internal/ledger"
	"go.uber.org/zap"
)

// writeError maps domain errors onto HTTP responses. Key-format failures are
// the caller's fault (400), chain-integrity failures mean a well-formed but
// unacceptable submission (422), and storage trouble is a retryable 503.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *devicekey.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": verr.Error(),
			"code":  string(verr.Code),
		})
		return
	}

	var ierr *ledger.IntegrityError
	if errors.As(err, &ierr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": ierr.Error(),
			"code":  string(ierr.Code),
			"index": ierr.Index,
		})
		return
	}

	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no data found for this device key; make sure the device has synced at least once",
		})
		return
	}

	if errors.Is(err, service.ErrStorageUnavailable) {
		logger.Error("storage unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, retry later"})
		return
	}

	logger.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
