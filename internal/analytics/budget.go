package analytics

import "spendlog/internal/core"

// PaceClass is the verdict of the projected month-end total against the
// configured budget.
type PaceClass string

const (
	// PaceNone means no budget is configured: the projection is pace-only.
	PaceNone PaceClass = "none"
	// PaceOnTrack: adjusted projection at or under 80% of budget.
	PaceOnTrack PaceClass = "on_track"
	// PaceTight: between 80% and 100%.
	PaceTight PaceClass = "tight"
	// PaceOver: projected to exceed the budget.
	PaceOver PaceClass = "over"
)

// Projection extrapolates month-end spend from pace to date. All money
// fields are integer cents; PercentOfBudget is a display ratio only.
type Projection struct {
	// OK is false when there is not enough elapsed month to project
	// (currentDay < 1). All other fields are zero in that case.
	OK bool

	DailyRateCents         int64
	ProjectedCents         int64
	AdjustedCents          int64
	SafeToSpendPerDayCents int64
	PercentOfBudget        float64
	Class                  PaceClass
}

// trendWindowDays is the trailing window blended into the projection once
// enough of the month has elapsed.
const trendWindowDays = 7

// ProjectBudget computes the month-end projection.
//
// monthTotalCents is spend so far this month; recentCents is spend over the
// trailing trendWindowDays including today. For the first six days of the
// month the adjusted projection equals the naive one (window too short).
// The safe-to-spend figure clamps at zero and is zero on the last day.
func ProjectBudget(monthTotalCents, recentCents int64, currentDay, daysInMonth int, budget *core.Money) Projection {
	if currentDay < 1 || daysInMonth < 1 {
		return Projection{}
	}

	p := Projection{OK: true, Class: PaceNone}
	p.DailyRateCents = monthTotalCents / int64(currentDay)
	p.ProjectedCents = p.DailyRateCents * int64(daysInMonth)

	daysRemaining := daysInMonth - currentDay

	p.AdjustedCents = p.ProjectedCents
	if currentDay >= trendWindowDays {
		recentRate := recentCents / trendWindowDays
		p.AdjustedCents = monthTotalCents + recentRate*int64(daysRemaining)
	}

	if budget == nil || budget.Cents <= 0 {
		return p
	}

	p.PercentOfBudget = float64(p.AdjustedCents) / float64(budget.Cents) * 100
	switch {
	case p.PercentOfBudget <= 80:
		p.Class = PaceOnTrack
	case p.PercentOfBudget <= 100:
		p.Class = PaceTight
	default:
		p.Class = PaceOver
	}

	if daysRemaining > 0 {
		if left := budget.Cents - monthTotalCents; left > 0 {
			p.SafeToSpendPerDayCents = left / int64(daysRemaining)
		}
	}
	return p
}
