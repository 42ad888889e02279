package analytics

import "time"

// AchievementDef is one badge in the static registry: an id, display
// metadata and a predicate over Stats. Predicates are pure and total; they
// read nothing but the Stats record and never depend on evaluation order.
type AchievementDef struct {
	ID     string
	Title  string
	Secret bool
	Check  func(Stats) bool
}

// Evaluation is the outcome of one evaluator run. Unlocked holds every
// definition whose predicate is currently true; NewlyUnlocked is Unlocked
// minus the previously persisted set.
//
// Predicates are not monotonic (a broken streak turns a streak predicate
// false again), so the caller must union NewlyUnlocked into its persisted
// set rather than replacing it: a badge, once earned, stays earned.
type Evaluation struct {
	Unlocked      []AchievementDef
	NewlyUnlocked []AchievementDef
}

// achievementRegistry is the canonical badge list, loaded once and never
// mutated. Keep the IDs stable: clients persist them.
var achievementRegistry = []AchievementDef{
	{
		ID:    "first_expense",
		Title: "First steps",
		Check: func(s Stats) bool { return s.TotalCount >= 1 },
	},
	{
		ID:    "getting_started",
		Title: "Getting started",
		Check: func(s Stats) bool { return s.TotalCount >= 10 },
	},
	{
		ID:    "habit_formed",
		Title: "Habit formed",
		Check: func(s Stats) bool { return s.TotalCount >= 50 },
	},
	{
		ID:    "century_club",
		Title: "Century club",
		Check: func(s Stats) bool { return s.TotalCount >= 100 },
	},
	{
		ID:    "on_a_roll",
		Title: "On a roll",
		Check: func(s Stats) bool { return s.CurrentStreak >= 3 },
	},
	{
		ID:    "week_warrior",
		Title: "Week warrior",
		Check: func(s Stats) bool { return s.CurrentStreak >= 7 },
	},
	{
		ID:    "iron_habit",
		Title: "Iron habit",
		Check: func(s Stats) bool { return s.LongestStreak >= 30 },
	},
	{
		ID:    "early_bird",
		Title: "Early bird",
		Check: func(s Stats) bool { return s.HasEarlyBird },
	},
	{
		ID:     "night_owl",
		Title:  "Night owl",
		Secret: true,
		Check:  func(s Stats) bool { return s.HasNightOwl },
	},
	{
		ID:    "weekend_regular",
		Title: "Weekend regular",
		Check: func(s Stats) bool { return s.HasFullWeekend },
	},
	{
		ID:    "month_opener",
		Title: "Month opener",
		Check: func(s Stats) bool { return s.HasFirstOfMonth },
	},
	{
		ID:    "month_closer",
		Title: "Month closer",
		Check: func(s Stats) bool { return s.HasLastOfMonth },
	},
	{
		ID:     "deja_vu",
		Title:  "Déjà vu",
		Secret: true,
		Check:  func(s Stats) bool { return s.HasAdjacentDuplicate },
	},
	{
		ID:    "friday_five",
		Title: "Friday five",
		Check: func(s Stats) bool { return s.MaxSameWeekdayCount[time.Friday] >= 5 },
	},
	{
		ID:    "big_ticket",
		Title: "Big ticket",
		Check: func(s Stats) bool { return s.MaxCents >= 10000 },
	},
	{
		ID:    "penny_watcher",
		Title: "Penny watcher",
		Check: func(s Stats) bool { return s.TotalCount > 0 && s.MinCents < 100 },
	},
	{
		ID:    "well_sorted",
		Title: "Well sorted",
		Check: func(s Stats) bool { return len(s.CategoryCounts) >= 5 },
	},
	{
		ID:    "loyal_customer",
		Title: "Loyal customer",
		Check: func(s Stats) bool {
			for _, n := range s.CategoryCounts {
				if n >= 25 {
					return true
				}
			}
			return false
		},
	},
	{
		ID:     "robot_friend",
		Title:  "Robot friend",
		Secret: true,
		Check:  func(s Stats) bool { return s.RobotTaps >= 10 },
	},
}

// AchievementRegistry returns the static badge registry.
func AchievementRegistry() []AchievementDef {
	return achievementRegistry
}

// EvaluateAchievements runs every predicate against stats and diffs the
// result against the previously unlocked id set.
func EvaluateAchievements(stats Stats, defs []AchievementDef, previous map[string]bool) Evaluation {
	var ev Evaluation
	for _, def := range defs {
		if !def.Check(stats) {
			continue
		}
		ev.Unlocked = append(ev.Unlocked, def)
		if !previous[def.ID] {
			ev.NewlyUnlocked = append(ev.NewlyUnlocked, def)
		}
	}
	return ev
}

// VisibleAchievements filters the registry for listing: secret badges only
// appear once unlocked. Presentation-side filtering, deliberately outside
// the evaluator.
func VisibleAchievements(defs []AchievementDef, unlocked map[string]bool) []AchievementDef {
	out := make([]AchievementDef, 0, len(defs))
	for _, def := range defs {
		if def.Secret && !unlocked[def.ID] {
			continue
		}
		out = append(out, def)
	}
	return out
}
