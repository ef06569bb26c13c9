// Package narrative turns locally computed aggregates into a structured
// guardian-facing report.
//
// The real prose comes from an external generative model behind the
// Generator interface. That service is allowed to be down: generation
// failures are the one case the system recovers from locally, by
// substituting a deterministic report built only from the aggregates it
// already has.
package narrative

import (
	"context"
	"time"
)

// Summary is the fixed-shape input handed to a Generator. Everything in it
// is computed locally from the device's ledger.
type Summary struct {
	TotalApps       int       `json:"total_apps"`
	TotalKeywords   int       `json:"total_keywords"`
	BlockedAttempts int       `json:"blocked_attempts"`
	TopApps         []string  `json:"top_apps"`        // at most 5
	RecentKeywords  []string  `json:"recent_keywords"` // at most 10
	WeeklyAverage   int       `json:"weekly_average"`  // minutes
	SentimentScore  float64   `json:"sentiment_score"` // prior locally computed score
	AsOf            time.Time `json:"as_of"`
}

// EmotionalTrends is the sentiment portion of a report.
type EmotionalTrends struct {
	SentimentScore float64 `json:"sentiment_score"`
	Interpretation string  `json:"interpretation"`
	TrendDirection string  `json:"trend_direction"` // improving, stable, concerning
}

// ScreenTimePolicy is the recommended policy block of a report.
type ScreenTimePolicy struct {
	DailyLimitMinutes   int    `json:"daily_limit_minutes"`
	WeekendLimitMinutes int    `json:"weekend_limit_minutes"`
	Bedtime             string `json:"bedtime"`
	Reasoning           string `json:"reasoning"`
}

// Report is the structured output of narrative generation. Both the external
// model and the local fallback produce exactly this shape.
type Report struct {
	ReportID             string           `json:"report_id"`
	GeneratedAt          time.Time        `json:"generated_at"`
	Source               string           `json:"source"` // "model" or "fallback"
	ExecutiveSummary     string           `json:"executive_summary"`
	KeyFindings          []string         `json:"key_findings"`
	EmotionalTrends      EmotionalTrends  `json:"emotional_trends"`
	PositiveHabits       []string         `json:"positive_habits"`
	PossibleConcerns     []string         `json:"possible_concerns"`
	GuidanceForParents   string           `json:"guidance_for_parents"`
	ScreenTimePolicy     ScreenTimePolicy `json:"screen_time_policy"`
	ConversationStarters []string         `json:"conversation_starters"`
}

// Generator produces a Report from a Summary.
type Generator interface {
	Generate(ctx context.Context, summary *Summary) (*Report, error)
}
