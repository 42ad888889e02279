package analytics

import "spendlog/internal/core"

// Level is the ordinal spending intensity of one calendar day, relative to
// a per-day baseline.
type Level string

const (
	// LevelEmpty marks a future day: never interactive, never counted
	// toward streaks or averages.
	LevelEmpty Level = "empty"
	// LevelZero is a past or present day with no recorded spend.
	LevelZero    Level = "zero"
	LevelLow     Level = "low"     // under 25% of baseline
	LevelMedium  Level = "medium"  // under 50%
	LevelHigh    Level = "high"    // under 75%
	LevelDanger  Level = "danger"  // under 100%
	LevelExtreme Level = "extreme" // at or over baseline
)

// fallbackBaselineCents anchors classification when there is neither a
// budget nor any observed history.
const fallbackBaselineCents = 5000

// ResolveBaseline picks the per-day spending reference: explicit budget
// divided over the month if set, else the observed average across active
// days, else a fixed constant.
func ResolveBaseline(budget *core.Money, daysInMonth int, stats Stats) int64 {
	if budget != nil && budget.Cents > 0 && daysInMonth > 0 {
		return budget.Cents / int64(daysInMonth)
	}
	if avg := stats.AverageDailyCents(); avg > 0 {
		return avg
	}
	return fallbackBaselineCents
}

// ClassifyDay maps a day total to its intensity level. A zero total is
// always LevelZero regardless of baseline; a total at or over the baseline
// is LevelExtreme.
func ClassifyDay(totalCents, baselineCents int64) Level {
	if totalCents <= 0 {
		return LevelZero
	}
	if baselineCents <= 0 {
		baselineCents = fallbackBaselineCents
	}
	pct := totalCents * 100 / baselineCents
	switch {
	case pct < 25:
		return LevelLow
	case pct < 50:
		return LevelMedium
	case pct < 75:
		return LevelHigh
	case pct < 100:
		return LevelDanger
	default:
		return LevelExtreme
	}
}

// Heatmap classifies every day in [from, to] against the baseline. Days
// after today come back LevelEmpty.
func Heatmap(dayCents map[core.DayKey]int64, from, to, today core.DayKey, baselineCents int64) map[core.DayKey]Level {
	levels := make(map[core.DayKey]Level)
	for day := from; !to.Before(day); day = day.AddDays(1) {
		if today.Before(day) {
			levels[day] = LevelEmpty
			continue
		}
		levels[day] = ClassifyDay(dayCents[day], baselineCents)
	}
	return levels
}
