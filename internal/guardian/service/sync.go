// Package service contains the business logic between the HTTP handlers and
// the stores: sync ingestion, integrity verification, and the read-side
// insight operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/limitx/guardian/internal/classify"
	"github.com/limitx/guardian/internal/devicekey"
	"github.com/limitx/guardian/internal/guardian/model"
	"github.com/limitx/guardian/internal/guardian/repository"
	"github.com/limitx/guardian/internal/ledger"
	"go.uber.org/zap"
)

// ErrStorageUnavailable wraps store failures so handlers can answer 503
// without inspecting driver errors.
var ErrStorageUnavailable = errors.New("storage unavailable")

// RiskNotifier is told about risky activity found in a freshly accepted
// chain. *alerts.Dispatcher satisfies this interface. Notification is
// best-effort and never fails a sync.
type RiskNotifier interface {
	NotifyRisk(ctx context.Context, deviceKey string, violations []model.Violation)
}

// SyncService accepts device chain submissions. A submission replaces the
// stored record wholesale; nothing is merged, so resubmitting the same chain
// is idempotent apart from the recorded sync time.
type SyncService struct {
	store     repository.DeviceStore
	validator *devicekey.Validator
	verifier  *ledger.Verifier
	keywords  classify.KeywordClassifier
	notifier  RiskNotifier // nil = no alerting
	logger    *zap.Logger
}

// NewSyncService creates a SyncService. notifier may be nil to disable
// risky-activity alerts.
func NewSyncService(store repository.DeviceStore, validator *devicekey.Validator, verifier *ledger.Verifier, notifier RiskNotifier, logger *zap.Logger) *SyncService {
	return &SyncService{
		store:     store,
		validator: validator,
		verifier:  verifier,
		keywords:  classify.NewRuleBasedClassifier(),
		notifier:  notifier,
		logger:    logger,
	}
}

// Sync validates the device key, verifies the submitted chain, and stores it
// as the new record for the key. The chain is rejected in full on the first
// integrity failure; the previously stored record is left untouched.
func (s *SyncService) Sync(ctx context.Context, req *model.SyncRequest) (*model.SyncSummary, error) {
	if err := s.validator.Validate(req.DeviceKey); err != nil {
		return nil, err
	}
	if err := s.verifier.Verify(req.Ledger.Blocks); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &model.DeviceRecord{
		DeviceKey:         req.DeviceKey,
		DeviceID:          req.Ledger.DeviceID,
		Blocks:            req.Ledger.Blocks,
		LastSync:          now,
		ClientVersion:     req.ClientVersion,
		IntegrityVerified: true,
	}
	if record.DeviceID == "" && len(record.Blocks) > 0 {
		record.DeviceID = record.Blocks[0].DeviceID
	}

	if err := s.store.Save(ctx, record); err != nil {
		s.logger.Error("sync save failed",
			zap.String("device_id", record.DeviceID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.logger.Info("chain accepted",
		zap.String("device_id", record.DeviceID),
		zap.Int("blocks", len(record.Blocks)),
		zap.String("client_version", record.ClientVersion),
	)

	s.notifyRisk(ctx, req.DeviceKey, record.Blocks)

	return &model.SyncSummary{BlockCount: len(record.Blocks), Timestamp: now}, nil
}

// notifyRisk forwards risky-keyword blocks to the configured notifier.
func (s *SyncService) notifyRisk(ctx context.Context, deviceKey string, blocks []ledger.Block) {
	if s.notifier == nil {
		return
	}
	var risky []model.Violation
	for _, b := range blocks {
		if s.keywords.ClassifyKeyword(b.Keyword) != classify.KeywordRisky {
			continue
		}
		risky = append(risky, violationView(b))
	}
	if len(risky) == 0 {
		return
	}
	s.notifier.NotifyRisk(ctx, deviceKey, risky)
}

// violationView converts a block into its dashboard representation.
func violationView(b ledger.Block) model.Violation {
	return model.Violation{
		ID:        b.Index,
		DeviceID:  b.DeviceID,
		AppName:   b.AppName,
		Keyword:   b.Keyword,
		Timestamp: b.Timestamp,
		Date:      time.UnixMilli(b.Timestamp).UTC().Format("2006-01-02 15:04:05"),
		Hash:      b.Hash,
	}
}
