// Package analytics derives time-windowed behavioral statistics from a
// device's violation ledger.
//
// Aggregation is a pure function of the input blocks and the asOf instant:
// identical inputs produce bit-identical profiles. Every truncation count,
// ordering, and tie-break below is a contract relied on by the dashboard.
package analytics

import (
	"sort"
	"time"

	"github.com/limitx/guardian/internal/classify"
	"github.com/limitx/guardian/internal/ledger"
)

const (
	// maxTopApps is the usage-ranking cut.
	maxTopApps = 20
	// maxKeywords is the keyword-frequency cut.
	maxKeywords = 100
	// maxBlockedAttempts caps the blocked-attempt series, first in chain order.
	maxBlockedAttempts = 100
	// maxScreenTimeDays is the daily screen-time window.
	maxScreenTimeDays = 30
	// maxHeatmapDays is the sleep-heatmap window.
	maxHeatmapDays = 14

	// minutesPerEvent converts an event count into a screen-time estimate.
	// Heuristic: each violation stands in for roughly two minutes of use.
	// This is not measured telemetry.
	minutesPerEvent = 2
)

// Engagement curve shape: fixed hour sets and multipliers applied to a base
// derived from the weekly average. An illustrative estimate, not per-event
// timing.
var (
	peakEngagementHours     = map[int]bool{19: true, 20: true, 21: true}
	moderateEngagementHours = map[int]bool{15: true, 16: true, 17: true, 18: true, 22: true}
)

const (
	peakMultiplier     = 3
	moderateMultiplier = 2
)

// Aggregator turns raw ledger blocks into a BehavioralProfile. It is
// stateless and safe for concurrent use.
type Aggregator struct {
	apps     classify.AppClassifier
	keywords classify.KeywordClassifier
}

// NewAggregator creates an Aggregator with the given classification
// strategies. Nil strategies fall back to the bundled rule tables.
func NewAggregator(apps classify.AppClassifier, keywords classify.KeywordClassifier) *Aggregator {
	def := classify.NewRuleBasedClassifier()
	if apps == nil {
		apps = def
	}
	if keywords == nil {
		keywords = def
	}
	return &Aggregator{apps: apps, keywords: keywords}
}

// Aggregate computes the full profile for blocks as of asOf.
func (a *Aggregator) Aggregate(blocks []ledger.Block, asOf time.Time) *BehavioralProfile {
	p := &BehavioralProfile{
		TotalViolations: len(blocks),
		GeneratedAt:     asOf.UTC(),
	}
	if len(blocks) > 0 {
		p.DeviceID = blocks[0].DeviceID
	}

	p.TopApps = a.rankApps(blocks)
	p.Keywords = a.rankKeywords(blocks)
	p.BlockedAttempts = blockedSeries(blocks)
	p.ScreenTime = screenTime(blocks)
	p.SleepHeatmap, p.LateNightEvents = sleepHeatmap(p.ScreenTime.Daily)
	p.HourlyEngagement = engagementCurve(p.ScreenTime.WeeklyAverage, len(blocks))
	p.SentimentScore = sentiment(p.Keywords)
	return p
}

// rankApps counts blocks per appName and returns the top 20 by count
// descending, ties broken by first appearance in the chain.
func (a *Aggregator) rankApps(blocks []ledger.Block) []AppUsage {
	index := make(map[string]int)
	var apps []AppUsage
	for i := range blocks {
		b := &blocks[i]
		at, ok := index[b.AppName]
		if !ok {
			index[b.AppName] = len(apps)
			apps = append(apps, AppUsage{
				AppName:  b.AppName,
				Category: a.apps.ClassifyApp(b.AppName),
			})
			at = len(apps) - 1
		}
		apps[at].UsageCount++
		if b.Timestamp > apps[at].LastUsed {
			apps[at].LastUsed = b.Timestamp
		}
	}

	// Stable sort over first-seen order keeps the tie-break.
	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].UsageCount > apps[j].UsageCount
	})
	if len(apps) > maxTopApps {
		apps = apps[:maxTopApps]
	}
	if apps == nil {
		apps = []AppUsage{}
	}
	return apps
}

// rankKeywords counts blocks per keyword and returns the top 100 by
// frequency descending, ties broken by first appearance.
func (a *Aggregator) rankKeywords(blocks []ledger.Block) []KeywordStat {
	index := make(map[string]int)
	var stats []KeywordStat
	for i := range blocks {
		b := &blocks[i]
		at, ok := index[b.Keyword]
		if !ok {
			index[b.Keyword] = len(stats)
			stats = append(stats, KeywordStat{
				Keyword:  b.Keyword,
				Category: a.keywords.ClassifyKeyword(b.Keyword),
			})
			at = len(stats) - 1
		}
		stats[at].Frequency++
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Frequency > stats[j].Frequency
	})
	if len(stats) > maxKeywords {
		stats = stats[:maxKeywords]
	}
	if stats == nil {
		stats = []KeywordStat{}
	}
	return stats
}

// blockedSeries maps blocks onto timestamped points, capped at the first 100
// in chain order.
func blockedSeries(blocks []ledger.Block) []BlockedAttempt {
	n := len(blocks)
	if n > maxBlockedAttempts {
		n = maxBlockedAttempts
	}
	series := make([]BlockedAttempt, 0, n)
	for i := 0; i < n; i++ {
		series = append(series, BlockedAttempt{
			Keyword:   blocks[i].Keyword,
			AppName:   blocks[i].AppName,
			Timestamp: blocks[i].Timestamp,
			BlockHash: blocks[i].Hash,
		})
	}
	return series
}

// screenTime groups blocks by UTC calendar date, estimates minutes from the
// event count, keeps the most recent 30 dates ascending, and derives the
// weekly average as floor(sum / dayCount).
func screenTime(blocks []ledger.Block) ScreenTime {
	type dayAgg struct {
		count int
		hours map[int]bool
	}
	days := make(map[string]*dayAgg)
	for i := range blocks {
		t := time.UnixMilli(blocks[i].Timestamp).UTC()
		date := t.Format("2006-01-02")
		d, ok := days[date]
		if !ok {
			d = &dayAgg{hours: make(map[int]bool)}
			days[date] = d
		}
		d.count++
		d.hours[t.Hour()] = true
	}

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	if len(dates) > maxScreenTimeDays {
		dates = dates[len(dates)-maxScreenTimeDays:]
	}

	st := ScreenTime{Daily: make([]DailyScreenTime, 0, len(dates))}
	total := 0
	for _, date := range dates {
		d := days[date]
		hours := make([]int, 0, len(d.hours))
		for h := range d.hours {
			hours = append(hours, h)
		}
		sort.Ints(hours)

		minutes := d.count * minutesPerEvent
		total += minutes
		st.Daily = append(st.Daily, DailyScreenTime{
			Date:      date,
			Minutes:   minutes,
			PeakHours: hours,
		})
	}
	if len(st.Daily) > 0 {
		st.WeeklyAverage = total / len(st.Daily)
	}
	return st
}

// sleepHeatmap maps each of the most recent 14 days' peak hours into ten
// slots spanning 21:00 through 06:59. Hours 21..23 map to slots 0..2 and
// hours 0..6 wrap to slots 3..9; daytime hours are excluded. The second
// return value counts how many day-hour cells landed in the window.
func sleepHeatmap(daily []DailyScreenTime) ([]SleepHeatmapDay, int) {
	if len(daily) > maxHeatmapDays {
		daily = daily[len(daily)-maxHeatmapDays:]
	}
	heatmap := make([]SleepHeatmapDay, 0, len(daily))
	lateNight := 0
	for _, d := range daily {
		row := SleepHeatmapDay{Date: d.Date}
		for _, hour := range d.PeakHours {
			var slot int
			switch {
			case hour >= 21:
				slot = hour - 21
			case hour < 7:
				slot = hour + 3
			default:
				continue
			}
			row.Slots[slot]++
			lateNight++
		}
		heatmap = append(heatmap, row)
	}
	return heatmap, lateNight
}

// engagementCurve builds the 24-bucket synthetic engagement shape. The base
// is the weekly average spread across the day; peak evening hours get 3x,
// shoulder hours 2x, everything else the floor. All zero when the ledger is
// empty.
func engagementCurve(weeklyAverage, totalBlocks int) [24]int {
	var curve [24]int
	if totalBlocks == 0 {
		return curve
	}
	base := weeklyAverage / 24
	if base == 0 {
		base = 1
	}
	for h := 0; h < 24; h++ {
		switch {
		case peakEngagementHours[h]:
			curve[h] = base * peakMultiplier
		case moderateEngagementHours[h]:
			curve[h] = base * moderateMultiplier
		default:
			curve[h] = base
		}
	}
	return curve
}

// sentiment reduces the keyword table to a single score in [-1, 1],
// frequency-weighted. Zero when there are no keywords.
func sentiment(keywords []KeywordStat) float64 {
	total := 0
	sum := 0.0
	for _, k := range keywords {
		total += k.Frequency
		sum += classify.SentimentWeight(k.Category) * float64(k.Frequency)
	}
	if total == 0 {
		return 0
	}
	score := sum / float64(total)
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}
