package analytics

import (
	"time"

	"github.com/limitx/guardian/internal/classify"
)

// AppUsage is one entry of the usage ranking.
type AppUsage struct {
	AppName    string               `json:"app_name"`
	UsageCount int                  `json:"usage_count"`
	Category   classify.AppCategory `json:"category"`
	LastUsed   int64                `json:"last_used"` // ms epoch of the newest event
}

// KeywordStat is one entry of the keyword frequency table.
type KeywordStat struct {
	Keyword   string                   `json:"keyword"`
	Frequency int                      `json:"frequency"`
	Category  classify.KeywordCategory `json:"category"`
}

// BlockedAttempt is one point of the blocked-attempt series.
type BlockedAttempt struct {
	Keyword   string `json:"keyword"`
	AppName   string `json:"app_name"`
	Timestamp int64  `json:"timestamp"`
	BlockHash string `json:"block_hash"`
}

// DailyScreenTime is the per-calendar-date usage estimate. Minutes are a
// count-based heuristic, not measured durations.
type DailyScreenTime struct {
	Date      string `json:"date"` // "2006-01-02", UTC
	Minutes   int    `json:"minutes"`
	PeakHours []int  `json:"peak_hours"` // distinct UTC hours with activity, ascending
}

// ScreenTime is the daily series plus its derived weekly average.
type ScreenTime struct {
	Daily         []DailyScreenTime `json:"daily"`
	WeeklyAverage int               `json:"weekly_average"` // floor(sum minutes / day count)
}

// SleepHeatmapDay holds late-night activity counts for one date across the
// ten slots from 21:00 through 06:59.
type SleepHeatmapDay struct {
	Date  string  `json:"date"`
	Slots [10]int `json:"slots"`
}

// SleepSlotLabels are the clock labels of the heatmap slots, index-aligned
// with SleepHeatmapDay.Slots.
var SleepSlotLabels = [10]string{
	"21:00", "22:00", "23:00", "00:00", "01:00",
	"02:00", "03:00", "04:00", "05:00", "06:00",
}

// BehavioralProfile is the derived statistics cache for one device. It is
// never authoritative: it can always be rebuilt from the stored ledger.
type BehavioralProfile struct {
	DeviceID         string            `json:"device_id"`
	TotalViolations  int               `json:"total_violations"`
	TopApps          []AppUsage        `json:"top_apps"`         // at most 20
	Keywords         []KeywordStat     `json:"keywords"`         // at most 100
	BlockedAttempts  []BlockedAttempt  `json:"blocked_attempts"` // at most 100, chain order
	ScreenTime       ScreenTime        `json:"screen_time"`
	SleepHeatmap     []SleepHeatmapDay `json:"sleep_heatmap"` // at most 14, ascending by date
	HourlyEngagement [24]int           `json:"hourly_engagement"`
	SentimentScore   float64           `json:"sentiment_score"`
	LateNightEvents  int               `json:"late_night_events"`
	GeneratedAt      time.Time         `json:"generated_at"`
}
