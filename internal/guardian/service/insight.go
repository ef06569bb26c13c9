package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/limitx/guardian/internal/analytics"
	"github.com/limitx/guardian/internal/devicekey"
	"github.com/limitx/guardian/internal/guardian/model"
	"github.com/limitx/guardian/internal/guardian/repository"
	"github.com/limitx/guardian/internal/ledger"
	"github.com/limitx/guardian/internal/narrative"
	"go.uber.org/zap"
)

// DashboardData is the parent-facing view of one device's stored chain.
type DashboardData struct {
	DeviceKey       string            `json:"device_key"`
	DeviceID        string            `json:"device_id"`
	Violations      []model.Violation `json:"violations"` // newest first
	TotalViolations int               `json:"total_violations"`
	LastSync        time.Time         `json:"last_sync"`
	ClientVersion   string            `json:"client_version"`
	ChainIntact     bool              `json:"chain_intact"`
}

// DeviceStats are coarse counters over a stored chain.
type DeviceStats struct {
	TotalViolations    int            `json:"total_violations"`
	AppBreakdown       map[string]int `json:"app_breakdown"`
	KeywordBreakdown   map[string]int `json:"keyword_breakdown"`
	HourlyDistribution [24]int        `json:"hourly_distribution"`
	LastSync           time.Time      `json:"last_sync"`
}

// VerifyResult is the outcome of re-verifying a stored chain on demand.
type VerifyResult struct {
	Valid       bool   `json:"valid"`
	TotalBlocks int    `json:"total_blocks"`
	FailureCode string `json:"failure_code,omitempty"`
	FailedIndex int    `json:"failed_index,omitempty"`
}

// InsightService serves every read-side operation over stored chains, plus
// report generation and policy management.
type InsightService struct {
	store      repository.Store
	validator  *devicekey.Validator
	verifier   *ledger.Verifier
	aggregator *analytics.Aggregator
	narrator   *narrative.Service
	logger     *zap.Logger
}

// NewInsightService creates an InsightService.
func NewInsightService(store repository.Store, validator *devicekey.Validator, verifier *ledger.Verifier, aggregator *analytics.Aggregator, narrator *narrative.Service, logger *zap.Logger) *InsightService {
	return &InsightService{
		store:      store,
		validator:  validator,
		verifier:   verifier,
		aggregator: aggregator,
		narrator:   narrator,
		logger:     logger,
	}
}

// load validates the key format and fetches its record.
func (s *InsightService) load(ctx context.Context, deviceKey string) (*model.DeviceRecord, error) {
	if err := s.validator.Validate(deviceKey); err != nil {
		return nil, err
	}
	rec, err := s.store.Load(ctx, deviceKey)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Dashboard returns the stored chain as a newest-first violation list. The
// chain is re-verified on every read so tampering with stored data shows up
// immediately.
func (s *InsightService) Dashboard(ctx context.Context, deviceKey string) (*DashboardData, error) {
	rec, err := s.load(ctx, deviceKey)
	if err != nil {
		return nil, err
	}

	violations := make([]model.Violation, 0, len(rec.Blocks))
	for _, b := range rec.Blocks {
		violations = append(violations, violationView(b))
	}
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Timestamp > violations[j].Timestamp
	})

	return &DashboardData{
		DeviceKey:       rec.DeviceKey,
		DeviceID:        rec.DeviceID,
		Violations:      violations,
		TotalViolations: len(violations),
		LastSync:        rec.LastSync,
		ClientVersion:   rec.ClientVersion,
		ChainIntact:     s.verifier.Verify(rec.Blocks) == nil,
	}, nil
}

// Stats returns per-app, per-keyword, and hourly counters for a device.
func (s *InsightService) Stats(ctx context.Context, deviceKey string) (*DeviceStats, error) {
	rec, err := s.load(ctx, deviceKey)
	if err != nil {
		return nil, err
	}

	stats := &DeviceStats{
		TotalViolations:  len(rec.Blocks),
		AppBreakdown:     make(map[string]int),
		KeywordBreakdown: make(map[string]int),
		LastSync:         rec.LastSync,
	}
	for _, b := range rec.Blocks {
		stats.AppBreakdown[b.AppName]++
		stats.KeywordBreakdown[b.Keyword]++
		hour := time.UnixMilli(b.Timestamp).UTC().Hour()
		stats.HourlyDistribution[hour]++
	}
	return stats, nil
}

// Verify re-runs chain verification against the stored record.
func (s *InsightService) Verify(ctx context.Context, deviceKey string) (*VerifyResult, error) {
	rec, err := s.load(ctx, deviceKey)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Valid: true, TotalBlocks: len(rec.Blocks)}
	if verr := s.verifier.Verify(rec.Blocks); verr != nil {
		result.Valid = false
		var ie *ledger.IntegrityError
		if errors.As(verr, &ie) {
			result.FailureCode = string(ie.Code)
			result.FailedIndex = ie.Index
		}
	}
	return result, nil
}

// Profile aggregates the stored chain into a behavioral profile.
func (s *InsightService) Profile(ctx context.Context, deviceKey string) (*analytics.BehavioralProfile, error) {
	rec, err := s.load(ctx, deviceKey)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Aggregate(rec.Blocks, time.Now().UTC()), nil
}

// Starters builds conversation starter cards from the current profile.
func (s *InsightService) Starters(ctx context.Context, deviceKey string) ([]analytics.ConversationStarter, error) {
	profile, err := s.Profile(ctx, deviceKey)
	if err != nil {
		return nil, err
	}
	return analytics.ConversationStarters(profile), nil
}

// GenerateReport builds a report summary from the stored chain, runs the
// narrative generator, persists the result, and returns it. Generation never
// fails outright while storage is up: narrative errors fall back to a
// deterministic local report.
func (s *InsightService) GenerateReport(ctx context.Context, deviceKey string) (*narrative.Report, error) {
	profile, err := s.Profile(ctx, deviceKey)
	if err != nil {
		return nil, err
	}

	report, err := s.narrator.Generate(ctx, summarize(profile))
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveReport(ctx, deviceKey, report); err != nil {
		s.logger.Error("report save failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return report, nil
}

// LatestReport returns the most recently stored report for a device.
func (s *InsightService) LatestReport(ctx context.Context, deviceKey string) (*narrative.Report, error) {
	if err := s.validator.Validate(deviceKey); err != nil {
		return nil, err
	}
	return s.store.LatestReport(ctx, deviceKey)
}

// Policy returns the current screen-time policy, falling back to the
// default when none has been set.
func (s *InsightService) Policy(ctx context.Context, deviceKey string) (*model.Policy, error) {
	if err := s.validator.Validate(deviceKey); err != nil {
		return nil, err
	}
	return s.store.GetPolicy(ctx, deviceKey)
}

// SetPolicy appends a new policy version for a device.
func (s *InsightService) SetPolicy(ctx context.Context, policy *model.Policy) error {
	if err := s.validator.Validate(policy.DeviceKey); err != nil {
		return err
	}
	if err := s.store.SetPolicy(ctx, policy); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.logger.Info("policy updated",
		zap.Int("daily_limit_minutes", policy.DailyLimitMinutes),
		zap.String("bedtime", policy.Bedtime),
	)
	return nil
}

// PolicyHistory returns past policy versions, newest first.
func (s *InsightService) PolicyHistory(ctx context.Context, deviceKey string, limit int) ([]*model.Policy, error) {
	if err := s.validator.Validate(deviceKey); err != nil {
		return nil, err
	}
	return s.store.PolicyHistory(ctx, deviceKey, limit)
}

// summarize reduces a profile to the fixed-shape generator input.
func summarize(p *analytics.BehavioralProfile) *narrative.Summary {
	summary := &narrative.Summary{
		TotalApps:       len(p.TopApps),
		TotalKeywords:   len(p.Keywords),
		BlockedAttempts: len(p.BlockedAttempts),
		WeeklyAverage:   p.ScreenTime.WeeklyAverage,
		SentimentScore:  p.SentimentScore,
		AsOf:            p.GeneratedAt,
	}
	for i, app := range p.TopApps {
		if i == 5 {
			break
		}
		summary.TopApps = append(summary.TopApps, app.AppName)
	}
	for i, kw := range p.Keywords {
		if i == 10 {
			break
		}
		summary.RecentKeywords = append(summary.RecentKeywords, kw.Keyword)
	}
	return summary
}
