package analytics

import (
	"sort"

	"spendlog/internal/core"
)

// Streak is the consecutive-day tracking state derived from the full set of
// days with at least one expense. This full recompute is authoritative; the
// incremental cache in settings is only a shortcut that must be reconciled
// against it.
type Streak struct {
	Current      int
	Longest      int
	TrackedToday bool
}

// ComputeStreak walks backward from today over the populated day set.
//
// If today has no activity the streak anchors on yesterday instead: a day
// that simply has not been tracked yet does not zero the streak. Longest is
// the maximum run length anywhere in the history, independent of Current.
func ComputeStreak(days map[core.DayKey]struct{}, today core.DayKey) Streak {
	var st Streak

	if len(days) == 0 {
		return st
	}

	_, st.TrackedToday = days[today]

	anchor := today
	if !st.TrackedToday {
		anchor = today.AddDays(-1)
	}
	for {
		if _, ok := days[anchor]; !ok {
			break
		}
		st.Current++
		anchor = anchor.AddDays(-1)
	}

	st.Longest = longestRun(days)
	return st
}

// longestRun scans the sorted day keys counting consecutive runs. A gap
// resets the running counter to 1, not 0: the day after the gap still
// counts itself.
func longestRun(days map[core.DayKey]struct{}) int {
	keys := make([]core.DayKey, 0, len(days))
	for d := range days {
		keys = append(keys, d)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	longest, run := 0, 0
	for i, d := range keys {
		if i > 0 && keys[i-1].AddDays(1) == d {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// AdvanceCache applies the incremental bump rule to a cached streak when a
// new expense lands on day: +1 if day is exactly one calendar day after the
// cached last-active day, unchanged for a repeat of the same day, reset to
// 1 otherwise. Purely a performance shortcut for large histories.
func AdvanceCache(cache *core.StreakCache, day core.DayKey) core.StreakCache {
	if cache == nil || cache.LastActiveDay == "" {
		return core.StreakCache{Current: 1, Longest: 1, LastActiveDay: day}
	}

	next := *cache
	switch day {
	case cache.LastActiveDay:
		// Same day, nothing advances.
	case cache.LastActiveDay.AddDays(1):
		next.Current++
		next.LastActiveDay = day
	default:
		next.Current = 1
		next.LastActiveDay = day
	}
	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	return next
}

// ReconcileCache returns the cache value the caller should persist: always
// the full recompute. The incremental value never wins a conflict.
func ReconcileCache(full Streak, today core.DayKey) core.StreakCache {
	lastActive := today
	if !full.TrackedToday {
		lastActive = today.AddDays(-1)
	}
	if full.Current == 0 {
		lastActive = ""
	}
	return core.StreakCache{
		Current:       full.Current,
		Longest:       full.Longest,
		LastActiveDay: lastActive,
	}
}
