package narrative

import (
	"context"
	"fmt"
	"strings"
)

// FallbackGenerator builds a deterministic templated report from the summary
// alone. It never fails and never touches the network; it exists so report
// generation degrades gracefully when the external model is unavailable.
type FallbackGenerator struct{}

// NewFallbackGenerator returns the deterministic fallback.
func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{}
}

// Generate implements Generator. The output depends only on the summary, so
// identical summaries produce identical reports.
func (g *FallbackGenerator) Generate(_ context.Context, summary *Summary) (*Report, error) {
	topApps := summary.TopApps
	if len(topApps) > 3 {
		topApps = topApps[:3]
	}

	trend := "stable"
	if summary.SentimentScore < -0.3 {
		trend = "concerning"
	} else if summary.SentimentScore > 0.3 {
		trend = "improving"
	}

	return &Report{
		ReportID:    "RPT-" + summary.AsOf.UTC().Format("20060102-150405"),
		GeneratedAt: summary.AsOf.UTC(),
		Source:      "fallback",
		ExecutiveSummary: fmt.Sprintf(
			"Digital activity report based on %d searches and %d applications used.",
			summary.TotalKeywords, summary.TotalApps,
		),
		KeyFindings: []string{
			"Most used applications: " + strings.Join(topApps, ", "),
			fmt.Sprintf("Average daily screen time: %d minutes", summary.WeeklyAverage),
			fmt.Sprintf("Blocked attempts: %d", summary.BlockedAttempts),
		},
		EmotionalTrends: EmotionalTrends{
			SentimentScore: summary.SentimentScore,
			Interpretation: "Monitoring data collected successfully.",
			TrendDirection: trend,
		},
		PositiveHabits:   []string{"Regular usage patterns", "Respecting time limits"},
		PossibleConcerns: []string{"Continue monitoring for changes"},
		GuidanceForParents: "Continue open communication with your child about their digital " +
			"activities. Review usage patterns regularly and adjust limits as needed.",
		ScreenTimePolicy: ScreenTimePolicy{
			DailyLimitMinutes:   120,
			WeekendLimitMinutes: 180,
			Bedtime:             "21:30",
			Reasoning:           "Standard recommendations for healthy digital habits",
		},
		ConversationStarters: []string{
			"What did you learn online this week?",
			"Is there anything interesting you'd like to share?",
		},
	}, nil
}
