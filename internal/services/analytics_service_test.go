package services

import (
	"context"
	"testing"
	"time"

	"spendlog/internal/analytics"
	"spendlog/internal/core"
)

type fakeStore struct {
	expenses []core.Expense
	settings core.Settings

	savedCache  *core.StreakCache
	savedIDs    []string
	createCalls []core.Expense
	deleted     []string
	budget      *core.Money
	robotTaps   int64
}

func (f *fakeStore) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return f.expenses, nil
}

func (f *fakeStore) GetSettings(ctx context.Context) (core.Settings, error) {
	return f.settings, nil
}

func (f *fakeStore) SaveStreakCache(ctx context.Context, cache core.StreakCache) error {
	f.savedCache = &cache
	return nil
}

func (f *fakeStore) SaveUnlockedAchievements(ctx context.Context, ids []string) error {
	f.savedIDs = append(f.savedIDs, ids...)
	return nil
}

func (f *fakeStore) CreateExpense(ctx context.Context, e core.Expense) error {
	f.createCalls = append(f.createCalls, e)
	return nil
}

func (f *fakeStore) SoftDeleteExpense(ctx context.Context, id string) (int64, error) {
	f.deleted = append(f.deleted, id)
	return 2, nil
}

func (f *fakeStore) SaveMonthlyBudget(ctx context.Context, budget *core.Money) error {
	f.budget = budget
	return nil
}

func (f *fakeStore) IncrementRobotTaps(ctx context.Context) (int64, error) {
	f.robotTaps++
	return f.robotTaps, nil
}

type fakePublisher struct {
	syncIDs   []string
	unlockIDs []string
}

func (f *fakePublisher) PublishExpenseSync(ctx context.Context, id string, version int64) error {
	f.syncIDs = append(f.syncIDs, id)
	return nil
}

func (f *fakePublisher) PublishAchievementUnlocked(ctx context.Context, achievementID, title string, unlockedAt time.Time) error {
	f.unlockIDs = append(f.unlockIDs, achievementID)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)
}

func snapshotExpenses() []core.Expense {
	return []core.Expense{
		{
			ID:          "e1",
			OccurredAt:  time.Date(2026, time.March, 10, 8, 30, 0, 0, time.UTC),
			Amount:      core.Money{Cents: 450},
			Category:    "coffee",
			Description: "morning espresso",
		},
		{
			ID:          "e2",
			OccurredAt:  time.Date(2026, time.March, 9, 8, 15, 0, 0, time.UTC),
			Amount:      core.Money{Cents: 450},
			Category:    "coffee",
			Description: "morning espresso",
		},
	}
}

func TestAnalyticsService_RecomputePersistsProposals(t *testing.T) {
	store := &fakeStore{expenses: snapshotExpenses()}
	pub := &fakePublisher{}

	svc := NewAnalyticsService(store, pub, nil, time.UTC)
	svc.now = fixedNow

	derived, err := svc.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	if derived.Streak.Current != 2 {
		t.Errorf("Streak.Current = %d, want 2", derived.Streak.Current)
	}
	if store.savedCache == nil {
		t.Fatal("expected streak cache persisted")
	}
	if store.savedCache.Current != 2 || store.savedCache.LastActiveDay != "2026-03-10" {
		t.Errorf("saved cache = %+v", store.savedCache)
	}

	if len(store.savedIDs) == 0 {
		t.Fatal("expected newly unlocked achievements persisted")
	}
	if len(pub.unlockIDs) != len(store.savedIDs) {
		t.Errorf("published %d unlock events, persisted %d ids", len(pub.unlockIDs), len(store.savedIDs))
	}
}

func TestAnalyticsService_MonthOverview(t *testing.T) {
	store := &fakeStore{expenses: snapshotExpenses()}
	svc := NewAnalyticsService(store, nil, nil, time.UTC)
	svc.now = fixedNow

	stats, err := svc.MonthOverview(context.Background(), 2026, time.March)
	if err != nil {
		t.Fatalf("MonthOverview: %v", err)
	}
	if stats.TotalCents != 900 || stats.CategoryCounts["coffee"] != 2 {
		t.Errorf("March stats = %d cents / %d coffees, want 900 / 2",
			stats.TotalCents, stats.CategoryCounts["coffee"])
	}

	stats, err = svc.MonthOverview(context.Background(), 2026, time.January)
	if err != nil {
		t.Fatalf("MonthOverview: %v", err)
	}
	if stats.TotalCount != 0 {
		t.Errorf("January count = %d, want 0", stats.TotalCount)
	}
}

func TestAnalyticsService_NoDuplicateUnlockEvents(t *testing.T) {
	store := &fakeStore{expenses: snapshotExpenses()}
	pub := &fakePublisher{}

	svc := NewAnalyticsService(store, pub, nil, time.UTC)
	svc.now = fixedNow

	first, err := svc.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	// Simulate the persisted state the first run produced.
	store.settings.UnlockedAchievements = first.ProposedSettings.UnlockedAchievements
	store.settings.Streak = first.ProposedSettings.Streak
	pub.unlockIDs = nil

	if _, err := svc.Recompute(context.Background()); err != nil {
		t.Fatalf("second Recompute: %v", err)
	}
	if len(pub.unlockIDs) != 0 {
		t.Errorf("second run republished %v", pub.unlockIDs)
	}
}

type countingCache struct {
	derived analytics.Derived
	ok      bool
	gets    int
	sets    int
	purges  int
}

func (c *countingCache) Get(key string) (analytics.Derived, bool) {
	c.gets++
	return c.derived, c.ok
}

func (c *countingCache) Set(key string, data analytics.Derived) {
	c.sets++
	c.derived, c.ok = data, true
}

func (c *countingCache) Purge() {
	c.purges++
	c.ok = false
}

func TestAnalyticsService_DashboardUsesCache(t *testing.T) {
	store := &fakeStore{expenses: snapshotExpenses()}
	cache := &countingCache{}

	svc := NewAnalyticsService(store, nil, cache, time.UTC)
	svc.now = fixedNow

	if _, err := svc.Dashboard(context.Background()); err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}

	if _, err := svc.Dashboard(context.Background()); err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets after hit = %d, want still 1", cache.sets)
	}

	svc.InvalidateCache()
	if cache.purges != 1 {
		t.Errorf("cache purges = %d, want 1", cache.purges)
	}
}

func TestExpenseService_CreateExpense(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}

	svc := NewExpenseService(store, pub, time.UTC)
	svc.now = fixedNow

	created, err := svc.CreateExpense(context.Background(), core.Expense{
		Amount:      core.Money{Cents: 450},
		Category:    "coffee",
		Description: "morning espresso",
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	if created.ID == "" {
		t.Error("expected an assigned id")
	}
	if !created.OccurredAt.Equal(fixedNow()) {
		t.Errorf("OccurredAt = %v, want stamped with now", created.OccurredAt)
	}
	if len(store.createCalls) != 1 {
		t.Fatalf("store received %d creates, want 1", len(store.createCalls))
	}
	if len(pub.syncIDs) != 1 || pub.syncIDs[0] != created.ID {
		t.Errorf("published sync ids = %v", pub.syncIDs)
	}
	if store.savedCache == nil || store.savedCache.Current != 1 {
		t.Errorf("streak cache = %+v, want bumped to 1", store.savedCache)
	}
}

func TestExpenseService_CreateExpenseRejectsInvalid(t *testing.T) {
	store := &fakeStore{}
	svc := NewExpenseService(store, nil, time.UTC)

	_, err := svc.CreateExpense(context.Background(), core.Expense{
		Amount:   core.Money{Cents: -5},
		Category: "coffee",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(store.createCalls) != 0 {
		t.Error("invalid expense must not reach the store")
	}
}

func TestExpenseService_DeleteExpense(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := NewExpenseService(store, pub, time.UTC)

	if err := svc.DeleteExpense(context.Background(), "e1"); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "e1" {
		t.Errorf("deleted = %v", store.deleted)
	}
	if len(pub.syncIDs) != 1 {
		t.Errorf("expected one sync message, got %v", pub.syncIDs)
	}
}

func TestExpenseService_SetMonthlyBudget(t *testing.T) {
	store := &fakeStore{}
	svc := NewExpenseService(store, nil, time.UTC)

	if err := svc.SetMonthlyBudget(context.Background(), &core.Money{Cents: 30000}); err != nil {
		t.Fatalf("SetMonthlyBudget: %v", err)
	}
	if store.budget == nil || store.budget.Cents != 30000 {
		t.Errorf("budget = %+v", store.budget)
	}

	if err := svc.SetMonthlyBudget(context.Background(), &core.Money{Cents: 0}); err == nil {
		t.Error("expected error for non-positive budget")
	}

	if err := svc.SetMonthlyBudget(context.Background(), nil); err != nil {
		t.Errorf("clearing the budget should succeed: %v", err)
	}
	if store.budget != nil {
		t.Error("expected budget cleared")
	}
}
