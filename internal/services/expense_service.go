package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"spendlog/internal/analytics"
	"spendlog/internal/core"
)

// ExpenseStore is the slice of the repository the expense service needs.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) error
	SoftDeleteExpense(ctx context.Context, id string) (int64, error)
	GetSettings(ctx context.Context) (core.Settings, error)
	SaveStreakCache(ctx context.Context, cache core.StreakCache) error
	SaveMonthlyBudget(ctx context.Context, budget *core.Money) error
	IncrementRobotTaps(ctx context.Context) (int64, error)
}

// SyncPublisher queues an expense for mirroring. May be nil-backed in
// setups without a broker.
type SyncPublisher interface {
	PublishExpenseSync(ctx context.Context, id string, version int64) error
}

// ExpenseService owns the expense write path: persist locally first, then
// best-effort publish for the mirror. A broker outage never fails a write.
type ExpenseService struct {
	store     ExpenseStore
	publisher SyncPublisher
	loc       *time.Location
	now       func() time.Time
}

func NewExpenseService(store ExpenseStore, publisher SyncPublisher, loc *time.Location) *ExpenseService {
	if loc == nil {
		loc = time.UTC
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		loc:       loc,
		now:       time.Now,
	}
}

// CreateExpense validates, stamps and persists a new expense, bumps the
// incremental streak cache and queues the row for the mirror.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now().In(s.loc)
	}

	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("validate expense: %w", err)
	}

	if err := s.store.CreateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.bumpStreak(ctx, core.DayKeyOf(e.OccurredAt.In(s.loc)))

	if err := s.publishSync(ctx, e.ID, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", e.ID, "error", err)
		// The expense is saved locally; the worker's periodic sweep will
		// pick it up.
	}

	return e, nil
}

// DeleteExpense soft deletes and queues the removal for the mirror.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	version, err := s.store.SoftDeleteExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}

	if err := s.publishSync(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete sync message",
			"id", id, "error", err)
	}
	return nil
}

// SetMonthlyBudget stores the budget; nil clears it.
func (s *ExpenseService) SetMonthlyBudget(ctx context.Context, budget *core.Money) error {
	if budget != nil {
		if err := budget.Validate(); err != nil {
			return fmt.Errorf("validate budget: %w", err)
		}
	}
	if err := s.store.SaveMonthlyBudget(ctx, budget); err != nil {
		return fmt.Errorf("save monthly budget: %w", err)
	}
	return nil
}

// TapRobot bumps the cosmetic robot counter and returns the new total.
func (s *ExpenseService) TapRobot(ctx context.Context) (int64, error) {
	taps, err := s.store.IncrementRobotTaps(ctx)
	if err != nil {
		return 0, fmt.Errorf("tap robot: %w", err)
	}
	return taps, nil
}

// bumpStreak applies the incremental cache rule so the next dashboard read
// shows the fresh streak without waiting for a full recompute. The nightly
// reconciliation corrects any drift.
func (s *ExpenseService) bumpStreak(ctx context.Context, day core.DayKey) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load settings for streak bump", "error", err)
		return
	}

	next := analytics.AdvanceCache(settings.Streak, day)
	if settings.Streak != nil && next == *settings.Streak {
		return
	}
	if err := s.store.SaveStreakCache(ctx, next); err != nil {
		slog.WarnContext(ctx, "Failed to save streak cache", "error", err)
	}
}

func (s *ExpenseService) publishSync(ctx context.Context, id string, version int64) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Sync publisher not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishExpenseSync(ctx, id, version)
}
