package analytics

import (
	"fmt"
	"strings"

	"github.com/limitx/guardian/internal/classify"
)

// StarterType labels whether a card highlights something positive or a
// concern worth raising.
type StarterType string

const (
	StarterPositive StarterType = "positive"
	StarterConcern  StarterType = "concern"
)

// ConversationStarter is a parent-facing talking-point card derived from a
// behavioral profile.
type ConversationStarter struct {
	ID               int         `json:"id"`
	Type             StarterType `json:"type"`
	Title            string      `json:"title"`
	Message          string      `json:"message"`
	ActionSuggestion string      `json:"actionSuggestion"`
}

// Thresholds for concern cards.
const (
	highWeeklyAverageMinutes = 180
	highLateNightEvents      = 5
)

// ConversationStarters builds talking-point cards from a profile. Cards are
// deterministic for a given profile and numbered in the order they appear.
func ConversationStarters(profile *BehavioralProfile) []ConversationStarter {
	var starters []ConversationStarter

	add := func(t StarterType, title, message, action string) {
		starters = append(starters, ConversationStarter{
			ID:               len(starters) + 1,
			Type:             t,
			Title:            title,
			Message:          message,
			ActionSuggestion: action,
		})
	}

	if len(profile.TopApps) > 0 {
		topApp := profile.TopApps[0].AppName
		add(StarterPositive, "Favorite Application",
			fmt.Sprintf("Your child frequently uses %s. This could be a great conversation starter!", topApp),
			fmt.Sprintf("Ask them what they like most about %s and if they've discovered anything interesting.", topApp))
	}

	if profile.ScreenTime.WeeklyAverage > highWeeklyAverageMinutes {
		add(StarterConcern, "Screen Time Discussion",
			fmt.Sprintf("Average daily screen time is %d minutes. Consider discussing balance.", profile.ScreenTime.WeeklyAverage),
			"Talk about other activities they enjoy and create a balanced schedule together.")
	}

	if positive := positiveInterests(profile, 3); len(positive) > 0 {
		add(StarterPositive, "Positive Interests",
			fmt.Sprintf("Your child shows interest in: %s", strings.Join(positive, ", ")),
			"Encourage their curiosity by providing related books, activities, or educational resources.")
	}

	if profile.LateNightEvents > highLateNightEvents {
		add(StarterConcern, "Bedtime Routine",
			fmt.Sprintf("Detected %d late-night browsing sessions recently.", profile.LateNightEvents),
			"Discuss the importance of sleep and consider adjusting device access during bedtime hours.")
	}

	return starters
}

// positiveInterests returns up to limit keywords classed positive or
// educational, in ranked order.
func positiveInterests(profile *BehavioralProfile, limit int) []string {
	var interests []string
	for _, kw := range profile.Keywords {
		switch kw.Category {
		case classify.KeywordPositive, classify.KeywordEducational:
			interests = append(interests, kw.Keyword)
			if len(interests) == limit {
				return interests
			}
		}
	}
	return interests
}
