package analytics

import (
	"fmt"

	"spendlog/internal/core"
)

// ChallengeData is everything a challenge predicate may look at for one
// calendar day. Snapshot-derived and clock-explicit, so two calls with the
// same data always agree.
type ChallengeData struct {
	Now            int // hour of day, 0-23, in the user's timezone
	TodayCents     int64
	TodayCount     int
	TodayExpenses  []core.Expense
	YesterdayCents int64
	HasYesterday   bool
	DailyAvgCents  int64
	HistoryDays    int
}

// ChallengeDef describes one daily challenge. Eligible reports whether the
// challenge makes sense for the day's data; ineligible challenges are
// skipped during selection so the day's pick never depends on data the user
// does not have yet. IsComplete and Progress are evaluated on demand.
type ChallengeDef struct {
	ID         string
	Title      string
	Difficulty string
	Eligible   func(ChallengeData) bool
	IsComplete func(ChallengeData) bool
	Progress   func(ChallengeData) string
}

// ChallengeSelection is the resolved challenge for a day plus its live
// completion state.
type ChallengeSelection struct {
	Challenge ChallengeDef
	Complete  bool
	Progress  string
}

const (
	// evening is the cutoff hour after which abstinence-style challenges
	// may count as complete. Before it, "spend nothing today" is merely
	// not-yet-failed.
	evening = 18

	// minHistoryDays gates average-based challenges so early users are not
	// judged against a meaningless average.
	minHistoryDays = 7
)

func always(ChallengeData) bool { return true }

// challengeRegistry is the canonical challenge list. Order matters: the
// daily pick is an index into the eligible subset, so reordering or
// removing entries reshuffles everyone's challenge for the day. Append
// only.
var challengeRegistry = []ChallengeDef{
	{
		ID:         "no_spend_day",
		Title:      "Spend nothing today",
		Difficulty: "hard",
		Eligible:   always,
		IsComplete: func(d ChallengeData) bool {
			return d.TodayCount == 0 && d.Now >= evening
		},
		Progress: func(d ChallengeData) string {
			if d.TodayCount > 0 {
				return "already spent today"
			}
			if d.Now < evening {
				return "nothing spent so far, hold out until evening"
			}
			return "made it"
		},
	},
	{
		ID:         "log_three",
		Title:      "Log three expenses",
		Difficulty: "easy",
		Eligible:   always,
		IsComplete: func(d ChallengeData) bool { return d.TodayCount >= 3 },
		Progress: func(d ChallengeData) string {
			return fmt.Sprintf("%d of 3 logged", min(d.TodayCount, 3))
		},
	},
	{
		ID:         "before_noon",
		Title:      "Log an expense before noon",
		Difficulty: "easy",
		Eligible:   always,
		IsComplete: func(d ChallengeData) bool {
			for _, e := range d.TodayExpenses {
				if e.OccurredAt.Hour() < 12 {
					return true
				}
			}
			return false
		},
		Progress: func(d ChallengeData) string {
			if d.Now >= 12 {
				return "noon has passed"
			}
			return "no morning expense yet"
		},
	},
	{
		ID:         "beat_yesterday",
		Title:      "Spend less than yesterday",
		Difficulty: "medium",
		Eligible:   func(d ChallengeData) bool { return d.HasYesterday && d.YesterdayCents > 0 },
		IsComplete: func(d ChallengeData) bool {
			return d.Now >= evening && d.TodayCents < d.YesterdayCents
		},
		Progress: func(d ChallengeData) string {
			return fmt.Sprintf("today %s vs yesterday %s",
				core.Money{Cents: d.TodayCents}, core.Money{Cents: d.YesterdayCents})
		},
	},
	{
		ID:         "half_average",
		Title:      "Stay under half your daily average",
		Difficulty: "hard",
		Eligible: func(d ChallengeData) bool {
			return d.HistoryDays >= minHistoryDays && d.DailyAvgCents > 0
		},
		IsComplete: func(d ChallengeData) bool {
			return d.Now >= evening && d.TodayCents <= d.DailyAvgCents/2
		},
		Progress: func(d ChallengeData) string {
			return fmt.Sprintf("today %s, target %s",
				core.Money{Cents: d.TodayCents}, core.Money{Cents: d.DailyAvgCents / 2})
		},
	},
	{
		ID:         "under_average",
		Title:      "Stay under your daily average",
		Difficulty: "medium",
		Eligible: func(d ChallengeData) bool {
			return d.HistoryDays >= minHistoryDays && d.DailyAvgCents > 0
		},
		IsComplete: func(d ChallengeData) bool {
			return d.Now >= evening && d.TodayCents <= d.DailyAvgCents
		},
		Progress: func(d ChallengeData) string {
			return fmt.Sprintf("today %s, average %s",
				core.Money{Cents: d.TodayCents}, core.Money{Cents: d.DailyAvgCents})
		},
	},
	{
		ID:         "single_category",
		Title:      "Keep all spending in one category",
		Difficulty: "medium",
		Eligible:   always,
		IsComplete: func(d ChallengeData) bool {
			if d.Now < evening || d.TodayCount == 0 {
				return false
			}
			first := d.TodayExpenses[0].Category
			for _, e := range d.TodayExpenses[1:] {
				if e.Category != first {
					return false
				}
			}
			return true
		},
		Progress: func(d ChallengeData) string {
			cats := map[string]bool{}
			for _, e := range d.TodayExpenses {
				cats[e.Category] = true
			}
			return fmt.Sprintf("%d categories used", len(cats))
		},
	},
	{
		ID:         "detail_oriented",
		Title:      "Describe every expense in ten characters or more",
		Difficulty: "easy",
		Eligible:   always,
		IsComplete: func(d ChallengeData) bool {
			if d.TodayCount == 0 {
				return false
			}
			for _, e := range d.TodayExpenses {
				if len(e.Description) < 10 {
					return false
				}
			}
			return true
		},
		Progress: func(d ChallengeData) string {
			short := 0
			for _, e := range d.TodayExpenses {
				if len(e.Description) < 10 {
					short++
				}
			}
			return fmt.Sprintf("%d short descriptions", short)
		},
	},
}

// fallbackChallenge is used when no registry entry is eligible, which can
// only happen with an over-filtered registry. It has no preconditions by
// construction.
var fallbackChallenge = ChallengeDef{
	ID:         "log_one",
	Title:      "Log at least one expense",
	Difficulty: "easy",
	Eligible:   always,
	IsComplete: func(d ChallengeData) bool { return d.TodayCount >= 1 },
	Progress: func(d ChallengeData) string {
		if d.TodayCount >= 1 {
			return "done"
		}
		return "nothing logged yet"
	},
}

// ChallengeRegistry returns the static challenge registry.
func ChallengeRegistry() []ChallengeDef {
	return challengeRegistry
}

// SelectDailyChallenge picks the day's challenge deterministically: filter
// the registry by eligibility, then index the survivors with the day
// ordinal. Same day plus same eligibility set means the same challenge, no
// matter how often it is recomputed.
func SelectDailyChallenge(defs []ChallengeDef, dayOrdinal int, data ChallengeData) ChallengeSelection {
	eligible := make([]ChallengeDef, 0, len(defs))
	for _, def := range defs {
		if def.Eligible(data) {
			eligible = append(eligible, def)
		}
	}

	picked := fallbackChallenge
	if len(eligible) > 0 {
		picked = eligible[dayOrdinal%len(eligible)]
	}

	return ChallengeSelection{
		Challenge: picked,
		Complete:  picked.IsComplete(data),
		Progress:  picked.Progress(data),
	}
}
