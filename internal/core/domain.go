package core

import (
	"errors"
	"strings"
	"time"
)

type (
	Money struct {
		Cents int64
	}

	// Expense is a single logged spend event. Immutable once created; the
	// analytics engine only ever reads it.
	Expense struct {
		ID          string
		OccurredAt  time.Time
		Amount      Money
		Category    string
		Description string
	}

	// StreakCache is the incrementally maintained streak counter stored in
	// settings. It is a display shortcut only: the full recompute from the
	// expense history always wins when the two disagree.
	StreakCache struct {
		Current       int
		Longest       int
		LastActiveDay DayKey
	}

	// Settings holds the per-user knobs the engine reads. The engine never
	// mutates a Settings value in place; it returns proposed updates that
	// the caller decides to persist.
	Settings struct {
		MonthlyBudget        *Money
		Streak               *StreakCache
		UnlockedAchievements map[string]bool
		RobotTaps            int64
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if e.OccurredAt.IsZero() {
		return ErrMissingTimestamp
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

// WellFormed reports whether the expense may participate in day-bucketed
// analytics. Weaker than Validate: a zero amount is fine here, a negative
// amount or missing timestamp is not. Malformed records are skipped rather
// than failing the whole computation.
func (e Expense) WellFormed() bool {
	return !e.OccurredAt.IsZero() && e.Amount.Cents >= 0
}

// Unlocked reports whether the achievement id is in the persisted set.
func (s Settings) Unlocked(id string) bool {
	return s.UnlockedAchievements[id]
}

// CloneUnlocked returns a copy of the unlocked-achievement set so callers
// can union fresh evaluations without mutating the original.
func (s Settings) CloneUnlocked() map[string]bool {
	out := make(map[string]bool, len(s.UnlockedAchievements))
	for id, v := range s.UnlockedAchievements {
		if v {
			out[id] = true
		}
	}
	return out
}
