// Package analytics derives the gamified and advisory state shown to the
// user from a snapshot of expenses and settings: streaks, budget pace,
// achievements, the daily challenge and the spending-intensity heatmap.
//
// Every function here is pure: no I/O, no clocks, no shared state. Callers
// hold a snapshot and recompute on every data change instead of patching
// derived state incrementally.
package analytics

import (
	"time"

	"spendlog/internal/core"
)

// Stats is a flat record of counts, sums and flags computed in a single
// pass over an expense snapshot. It has no identity and no lifecycle beyond
// one computation.
//
// For an empty snapshot every numeric field is zero and every flag false;
// no field is ever NaN.
type Stats struct {
	TotalCount int
	TotalCents int64
	MinCents   int64
	MaxCents   int64

	CategoryCounts map[string]int
	CategoryCents  map[string]int64

	// Logged before 06:00 local at least once.
	HasEarlyBird bool
	// Logged between 00:00 and 04:59 local at least once.
	HasNightOwl bool
	// Both a Saturday and a Sunday appear in the history.
	HasFullWeekend  bool
	HasFirstOfMonth bool
	HasLastOfMonth  bool
	// Two consecutive records in input order share an amount. Order-sensitive:
	// see Aggregate's ordering contract.
	HasAdjacentDuplicate bool

	// Highest number of expenses logged on any single date, per weekday.
	// Indexed by time.Weekday (Sunday = 0).
	MaxSameWeekdayCount [7]int

	ActiveDays map[core.DayKey]struct{}
	DayCents   map[core.DayKey]int64
	DayCounts  map[core.DayKey]int

	// Filled in by Compute from the streak calculator so achievement
	// predicates can read everything off one record.
	CurrentStreak int
	LongestStreak int
	TrackedToday  bool

	// Cosmetic counter carried through from settings unchanged.
	RobotTaps int64
}

// Aggregate computes Stats in one linear pass over expenses.
//
// Ordering contract: expenses must arrive in a single consistent,
// caller-defined order (the repository returns newest-first). The
// adjacent-duplicate flag compares each record to the one immediately
// before it in this order and is meaningless otherwise.
//
// Records failing WellFormed are skipped as if they did not exist.
func Aggregate(expenses []core.Expense, settings core.Settings) Stats {
	s := Stats{
		CategoryCounts: make(map[string]int),
		CategoryCents:  make(map[string]int64),
		ActiveDays:     make(map[core.DayKey]struct{}),
		DayCents:       make(map[core.DayKey]int64),
		DayCounts:      make(map[core.DayKey]int),
		RobotTaps:      settings.RobotTaps,
	}

	var (
		sawSaturday bool
		sawSunday   bool
		prevValid   bool
		prevCents   int64
	)

	for _, e := range expenses {
		if !e.WellFormed() {
			continue
		}

		cents := e.Amount.Cents
		s.TotalCount++
		s.TotalCents += cents
		if s.TotalCount == 1 || cents < s.MinCents {
			s.MinCents = cents
		}
		if cents > s.MaxCents {
			s.MaxCents = cents
		}

		s.CategoryCounts[e.Category]++
		s.CategoryCents[e.Category] += cents

		day := core.DayKeyOf(e.OccurredAt)
		s.ActiveDays[day] = struct{}{}
		s.DayCents[day] += cents
		s.DayCounts[day]++

		wd := e.OccurredAt.Weekday()
		if n := s.DayCounts[day]; n > s.MaxSameWeekdayCount[wd] {
			// DayCounts already includes this record, and all records of one
			// day share a weekday, so the running max stays correct.
			s.MaxSameWeekdayCount[wd] = n
		}

		hour := e.OccurredAt.Hour()
		if hour < 6 {
			s.HasEarlyBird = true
		}
		if hour < 5 {
			s.HasNightOwl = true
		}

		switch wd {
		case time.Saturday:
			sawSaturday = true
		case time.Sunday:
			sawSunday = true
		}

		dom := e.OccurredAt.Day()
		if dom == 1 {
			s.HasFirstOfMonth = true
		}
		if dom == core.DaysInMonth(e.OccurredAt.Year(), e.OccurredAt.Month()) {
			s.HasLastOfMonth = true
		}

		if prevValid && prevCents == cents {
			s.HasAdjacentDuplicate = true
		}
		prevValid = true
		prevCents = cents
	}

	s.HasFullWeekend = sawSaturday && sawSunday
	return s
}

// AggregateMonth computes Stats restricted to one calendar month, given as
// a "YYYY-MM" key. The input keeps its newest-first order, so the filtered
// slice honors Aggregate's ordering contract.
func AggregateMonth(expenses []core.Expense, month string, settings core.Settings) Stats {
	filtered := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if !e.WellFormed() {
			continue
		}
		if core.DayKeyOf(e.OccurredAt).Month() == month {
			filtered = append(filtered, e)
		}
	}
	return Aggregate(filtered, settings)
}

// AverageDailyCents is the observed average spend across days that have at
// least one expense. Returns 0 for an empty history instead of dividing by
// zero.
func (s Stats) AverageDailyCents() int64 {
	if len(s.ActiveDays) == 0 {
		return 0
	}
	return s.TotalCents / int64(len(s.ActiveDays))
}

// MonthToDateCents sums the day buckets belonging to the month of today.
func (s Stats) MonthToDateCents(today core.DayKey) int64 {
	month := today.Month()
	var total int64
	for day, cents := range s.DayCents {
		if day.Month() == month && !today.Before(day) {
			total += cents
		}
	}
	return total
}

// TrailingWindowCents sums the day buckets for the window of n days ending
// at today (inclusive).
func (s Stats) TrailingWindowCents(today core.DayKey, n int) int64 {
	var total int64
	day := today
	for i := 0; i < n; i++ {
		total += s.DayCents[day]
		day = day.AddDays(-1)
	}
	return total
}
