package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spendlog/internal/analytics"
	"spendlog/internal/core"
)

// AnalyticsStore is the read-plus-persist slice the analytics service
// needs: the snapshot inputs, and the tables holding derived state.
type AnalyticsStore interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	GetSettings(ctx context.Context) (core.Settings, error)
	SaveStreakCache(ctx context.Context, cache core.StreakCache) error
	SaveUnlockedAchievements(ctx context.Context, ids []string) error
}

// UnlockPublisher broadcasts freshly earned badges.
type UnlockPublisher interface {
	PublishAchievementUnlocked(ctx context.Context, achievementID, title string, unlockedAt time.Time) error
}

// DerivedCache holds computed dashboards between recomputes.
type DerivedCache interface {
	Get(key string) (analytics.Derived, bool)
	Set(key string, data analytics.Derived)
	Purge()
}

// AnalyticsService runs the derivation pipeline over the stored snapshot
// and persists what the engine proposes: the reconciled streak cache and
// newly unlocked badges. Recomputing is idempotent, so every read path can
// call it freely.
type AnalyticsService struct {
	store     AnalyticsStore
	publisher UnlockPublisher
	cache     DerivedCache
	loc       *time.Location
	now       func() time.Time
}

func NewAnalyticsService(store AnalyticsStore, publisher UnlockPublisher, cache DerivedCache, loc *time.Location) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsService{
		store:     store,
		publisher: publisher,
		cache:     cache,
		loc:       loc,
		now:       time.Now,
	}
}

// cacheKey buckets cached dashboards by calendar day so a cached value
// never leaks across midnight.
func (s *AnalyticsService) cacheKey(now time.Time) string {
	return "derived:" + string(core.DayKeyOf(now))
}

// Dashboard returns the full derived state, from cache when fresh.
func (s *AnalyticsService) Dashboard(ctx context.Context) (analytics.Derived, error) {
	now := s.now().In(s.loc)

	if s.cache != nil {
		if derived, ok := s.cache.Get(s.cacheKey(now)); ok {
			return derived, nil
		}
	}
	return s.Recompute(ctx)
}

// Recompute loads a snapshot, runs the engine, persists the proposals and
// publishes unlock events.
func (s *AnalyticsService) Recompute(ctx context.Context) (analytics.Derived, error) {
	now := s.now().In(s.loc)

	expenses, err := s.store.ListExpenses(ctx)
	if err != nil {
		return analytics.Derived{}, fmt.Errorf("list expenses: %w", err)
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return analytics.Derived{}, fmt.Errorf("get settings: %w", err)
	}

	derived := analytics.Compute(analytics.Snapshot{
		Expenses: expenses,
		Settings: settings,
		Now:      now,
	})

	if err := s.persistProposals(ctx, settings, derived, now); err != nil {
		// Derived state is still correct; only the persisted shortcuts are
		// stale. Report the result and let the next run retry.
		slog.WarnContext(ctx, "Failed to persist derived state", "error", err)
	}

	if s.cache != nil {
		s.cache.Set(s.cacheKey(now), derived)
	}
	return derived, nil
}

// MonthOverview aggregates the expense log for one calendar month. It
// reads the store directly instead of the derived cache, so an overview of
// a past month is exact regardless of what the dashboard shows.
func (s *AnalyticsService) MonthOverview(ctx context.Context, year int, month time.Month) (analytics.Stats, error) {
	expenses, err := s.store.ListExpenses(ctx)
	if err != nil {
		return analytics.Stats{}, fmt.Errorf("list expenses: %w", err)
	}
	key := fmt.Sprintf("%04d-%02d", year, int(month))
	return analytics.AggregateMonth(expenses, key, core.Settings{}), nil
}

// InvalidateCache drops cached dashboards. Called after every write.
func (s *AnalyticsService) InvalidateCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *AnalyticsService) persistProposals(ctx context.Context, settings core.Settings, derived analytics.Derived, now time.Time) error {
	proposed := derived.ProposedSettings

	if proposed.Streak != nil {
		if settings.Streak == nil || *settings.Streak != *proposed.Streak {
			if err := s.store.SaveStreakCache(ctx, *proposed.Streak); err != nil {
				return fmt.Errorf("save streak cache: %w", err)
			}
		}
	}

	newly := derived.Achievements.NewlyUnlocked
	if len(newly) == 0 {
		return nil
	}

	ids := make([]string, len(newly))
	for i, def := range newly {
		ids[i] = def.ID
	}
	if err := s.store.SaveUnlockedAchievements(ctx, ids); err != nil {
		return fmt.Errorf("save unlocked achievements: %w", err)
	}

	for _, def := range newly {
		slog.InfoContext(ctx, "Achievement unlocked",
			"achievement", def.ID)
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.PublishAchievementUnlocked(ctx, def.ID, def.Title, now); err != nil {
			slog.WarnContext(ctx, "Failed to publish achievement event",
				"achievement", def.ID, "error", err)
		}
	}
	return nil
}
