package narrative

import (
	"context"

	"go.uber.org/zap"
)

// Service wraps a primary Generator with the mandatory local fallback.
// Narrative-generation failure is the only failure this system recovers
// from: every other error class propagates to the caller.
type Service struct {
	primary  Generator // nil = fallback only
	fallback Generator
	logger   *zap.Logger
}

// NewService creates a Service. primary may be nil when no external model is
// configured, in which case every report comes from the fallback.
func NewService(primary Generator, logger *zap.Logger) *Service {
	return &Service{
		primary:  primary,
		fallback: NewFallbackGenerator(),
		logger:   logger,
	}
}

// Generate returns the primary generator's report when it succeeds, and the
// deterministic fallback report otherwise.
func (s *Service) Generate(ctx context.Context, summary *Summary) (*Report, error) {
	if s.primary != nil {
		report, err := s.primary.Generate(ctx, summary)
		if err == nil {
			return report, nil
		}
		s.logger.Warn("narrative generation failed, using fallback", zap.Error(err))
	}
	return s.fallback.Generate(ctx, summary)
}
