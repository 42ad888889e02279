package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"spendlog/internal/amqp"
	"spendlog/internal/mirror"
	"spendlog/internal/services"
	"spendlog/internal/storage"
)

// SyncStore is the repository surface the worker drives.
type SyncStore interface {
	GetSyncRow(ctx context.Context, id string) (storage.SyncRow, error)
	GetPendingSyncExpenses(ctx context.Context, limit int) ([]storage.PendingSyncExpense, error)
	MarkSynced(ctx context.Context, id string, version int64) error
	MarkSyncError(ctx context.Context, id string) error
}

// SyncWorker pushes local expense changes to the external mirror and runs
// the nightly analytics reconciliation. AMQP messages are the fast path;
// the periodic sweep over pending rows is the safety net for lost
// messages and downtime.
type SyncWorker struct {
	store     SyncStore
	mirror    mirror.Mirror
	analytics *services.AnalyticsService
	batchSize int
}

func NewSyncWorker(store SyncStore, m mirror.Mirror, analytics *services.AnalyticsService, batchSize int) *SyncWorker {
	return &SyncWorker{
		store:     store,
		mirror:    m,
		analytics: analytics,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes one sync message. The message only names the
// row; the worker always mirrors the current database state, so replayed
// or reordered messages converge on the right outcome.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ExpenseSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	return w.syncRow(ctx, msg.ID)
}

func (w *SyncWorker) syncRow(ctx context.Context, id string) error {
	row, err := w.store.GetSyncRow(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// Hard-deleted or never committed; nothing to mirror.
		slog.WarnContext(ctx, "Sync message for unknown expense", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get sync row: %w", err)
	}

	if w.mirror == nil {
		slog.WarnContext(ctx, "No mirror configured, marking as synced", "id", id)
		return w.store.MarkSynced(ctx, id, row.Version)
	}

	if row.Deleted {
		if err := w.mirror.Remove(ctx, id); err != nil {
			w.flagSyncError(ctx, id)
			return fmt.Errorf("remove from mirror: %w", err)
		}
	} else {
		ref, err := w.mirror.Append(ctx, row.Expense)
		if err != nil {
			w.flagSyncError(ctx, id)
			return fmt.Errorf("append to mirror: %w", err)
		}
		slog.InfoContext(ctx, "Expense synced to mirror",
			"id", id,
			"sheets_ref", ref,
			"amount_cents", row.Expense.Amount.Cents)
	}

	if err := w.store.MarkSynced(ctx, id, row.Version); err != nil {
		// The mirror write succeeded; the row stays pending and the sweep
		// retries, which the mirror tolerates.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}
	return nil
}

func (w *SyncWorker) flagSyncError(ctx context.Context, id string) {
	if err := w.store.MarkSyncError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", err)
	}
}

// ProcessPendingExpenses sweeps rows still waiting for the mirror. Backup
// for lost AMQP messages.
func (w *SyncWorker) ProcessPendingExpenses(ctx context.Context) error {
	pending, err := w.store.GetPendingSyncExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending expenses: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending expenses", "count", len(pending))

	for _, p := range pending {
		if err := w.syncRow(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync expense", "id", p.ID, "error", err)
		}
	}
	return nil
}

// StartupSyncCheck drains a larger pending backlog once at worker startup
// to recover from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.store.GetPendingSyncExpenses(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending expenses for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending expenses found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending expenses on startup, processing",
		"count", len(pending))

	synced, failed := 0, 0
	for _, p := range pending {
		if err := w.syncRow(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync expense during startup",
				"id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return nil
}

// ReconcileDerivedState reruns the full analytics pipeline, which persists
// the authoritative streak cache over whatever the incremental bumps left
// behind. Scheduled shortly after midnight so streak breaks surface on the
// right day.
func (w *SyncWorker) ReconcileDerivedState(ctx context.Context) error {
	if w.analytics == nil {
		return nil
	}

	derived, err := w.analytics.Recompute(ctx)
	if err != nil {
		return fmt.Errorf("reconcile derived state: %w", err)
	}

	slog.InfoContext(ctx, "Derived state reconciled",
		"current_streak", derived.Streak.Current,
		"longest_streak", derived.Streak.Longest,
		"unlocked", len(derived.Achievements.Unlocked))
	return nil
}

// NextMidnight returns the first instant of the next calendar day in loc.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return next.AddDate(0, 0, 1)
}
