// Package integrity periodically re-verifies every stored chain. Storage is
// outside the proof-of-work trust boundary, so a record that passed
// verification at sync time can still rot or be edited at rest; the sweeper
// surfaces that.
package integrity

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/limitx/guardian/internal/guardian/repository"
	"github.com/limitx/guardian/internal/ledger"
	"go.uber.org/zap"
)

// Config holds sweep configuration.
type Config struct {
	SweepInterval time.Duration
	Concurrency   int
}

// MetricsRecordFunc is an optional callback for recording sweep results.
type MetricsRecordFunc func(valid bool)

// Sweeper re-verifies stored chains on a fixed interval and records the
// outcome on each device record.
type Sweeper struct {
	store     repository.DeviceStore
	verifier  *ledger.Verifier
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a Sweeper.
func New(store repository.DeviceStore, verifier *ledger.Verifier, cfg Config, logger *zap.Logger) *Sweeper {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 15 * time.Minute
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 10
	}
	return &Sweeper{
		store:    store,
		verifier: verifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (s *Sweeper) SetMetricsRecord(fn MetricsRecordFunc) {
	s.onMetrics = fn
}

// Start runs the sweep loop until quit is signalled.
func (s *Sweeper) Start(quit <-chan os.Signal) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SweepInterval-time.Second)
			s.SweepAll(ctx)
			cancel()
		case <-quit:
			return
		}
	}
}

// SweepAll re-verifies every stored chain with bounded concurrency.
func (s *Sweeper) SweepAll(ctx context.Context) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		s.logger.Error("sweep: list device keys", zap.Error(err))
		return
	}

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, key := range keys {
		wg.Add(1)
		go func(deviceKey string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			s.sweepOne(ctx, deviceKey)
		}(key)
	}
	wg.Wait()
}

// sweepOne re-verifies a single record and persists a changed verdict.
func (s *Sweeper) sweepOne(ctx context.Context, deviceKey string) {
	rec, err := s.store.Load(ctx, deviceKey)
	if err != nil {
		s.logger.Error("sweep: load record", zap.Error(err))
		return
	}

	verr := s.verifier.Verify(rec.Blocks)
	valid := verr == nil

	if s.onMetrics != nil {
		s.onMetrics(valid)
	}
	if !valid {
		s.logger.Warn("sweep: stored chain failed verification",
			zap.String("device_id", rec.DeviceID),
			zap.Error(verr),
		)
	}
	if rec.IntegrityVerified == valid {
		return
	}

	// Flip only the flag. A sync may have replaced the chain since the Load
	// above; writing the whole loaded record back would discard it.
	if err := s.store.UpdateIntegrity(ctx, deviceKey, valid); err != nil {
		s.logger.Error("sweep: update integrity flag", zap.Error(err))
	}
}
