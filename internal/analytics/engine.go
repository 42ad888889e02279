package analytics

import (
	"time"

	"spendlog/internal/core"
)

// Snapshot is the engine's entire input: the expense log, the persisted
// settings and an explicit clock. The engine itself never calls time.Now,
// so a snapshot computes the same Derived no matter when or how often it
// runs.
//
// Expenses must be ordered newest first; Aggregate's adjacency checks rely
// on it.
type Snapshot struct {
	Expenses []core.Expense
	Settings core.Settings
	Now      time.Time
}

// Derived is everything the engine computes from one snapshot.
// ProposedSettings carries the reconciled streak cache and the unioned
// achievement set back to the caller; persisting it is the caller's job.
type Derived struct {
	Today        core.DayKey
	Stats        Stats
	Streak       Streak
	Budget       Projection
	Heatmap      map[core.DayKey]Level
	Baseline     int64
	Achievements Evaluation
	Challenge    ChallengeSelection

	ProposedSettings core.Settings
}

// Compute runs the full pipeline: aggregate, streaks, budget projection,
// heatmap, achievements, daily challenge.
func Compute(snap Snapshot) Derived {
	today := core.DayKeyOf(snap.Now)
	year, month, _ := snap.Now.Date()
	daysInMonth := core.DaysInMonth(year, month)
	currentDay := snap.Now.Day()

	stats := Aggregate(snap.Expenses, snap.Settings)

	streak := ComputeStreak(stats.ActiveDays, today)
	stats.CurrentStreak = streak.Current
	stats.LongestStreak = streak.Longest
	stats.TrackedToday = streak.TrackedToday

	budget := ProjectBudget(
		stats.MonthToDateCents(today),
		stats.TrailingWindowCents(today, trendWindowDays),
		currentDay,
		daysInMonth,
		snap.Settings.MonthlyBudget,
	)

	baseline := ResolveBaseline(snap.Settings.MonthlyBudget, daysInMonth, stats)
	monthStart := core.DayKey(today.Month() + "-01")
	monthEnd := monthStart.AddDays(daysInMonth - 1)
	heat := Heatmap(stats.DayCents, monthStart, monthEnd, today, baseline)

	achievements := EvaluateAchievements(stats, AchievementRegistry(), snap.Settings.UnlockedAchievements)

	challenge := SelectDailyChallenge(
		ChallengeRegistry(),
		core.DayOrdinal(snap.Now),
		challengeData(snap, stats, today),
	)

	proposed := snap.Settings
	cache := ReconcileCache(streak, today)
	proposed.Streak = &cache
	unlocked := snap.Settings.CloneUnlocked()
	for _, def := range achievements.Unlocked {
		unlocked[def.ID] = true
	}
	proposed.UnlockedAchievements = unlocked

	return Derived{
		Today:            today,
		Stats:            stats,
		Streak:           streak,
		Budget:           budget,
		Heatmap:          heat,
		Baseline:         baseline,
		Achievements:     achievements,
		Challenge:        challenge,
		ProposedSettings: proposed,
	}
}

func challengeData(snap Snapshot, stats Stats, today core.DayKey) ChallengeData {
	yesterday := today.AddDays(-1)
	_, hasYesterday := stats.ActiveDays[yesterday]

	var todays []core.Expense
	for _, e := range snap.Expenses {
		if e.WellFormed() && core.DayKeyOf(e.OccurredAt) == today {
			todays = append(todays, e)
		}
	}

	return ChallengeData{
		Now:            snap.Now.Hour(),
		TodayCents:     stats.DayCents[today],
		TodayCount:     stats.DayCounts[today],
		TodayExpenses:  todays,
		YesterdayCents: stats.DayCents[yesterday],
		HasYesterday:   hasYesterday,
		DailyAvgCents:  stats.AverageDailyCents(),
		HistoryDays:    len(stats.ActiveDays),
	}
}
