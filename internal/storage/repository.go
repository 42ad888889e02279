package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"spendlog/internal/core"

	_ "modernc.org/sqlite"
)

// Sync states an expense row moves through on its way to the mirror.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

var ErrNotFound = errors.New("not found")

// PendingSyncExpense is the minimal row shape queued for mirroring.
type PendingSyncExpense struct {
	ID        string
	Version   int64
	CreatedAt time.Time
}

type SQLiteRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// runs migrations. Timestamps read back are converted into loc so day
// bucketing downstream matches the user's calendar.
func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}
	return &SQLiteRepository{db: db, loc: loc}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateExpense inserts a new expense in the pending sync state.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, occurred_at, amount_cents, category, description, created_at, sync_status, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
		e.ID,
		e.OccurredAt.UTC().Format(time.RFC3339),
		e.Amount.Cents,
		e.Category,
		e.Description,
		time.Now().UTC().Format(time.RFC3339),
		SyncPending,
	)
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)
	return nil
}

// SoftDeleteExpense marks an expense deleted and re-queues it for sync so
// the mirror learns about the removal. Returns the bumped version, or
// ErrNotFound for unknown or already deleted ids.
func (r *SQLiteRepository) SoftDeleteExpense(ctx context.Context, id string) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE expenses
		SET deleted_at = ?, sync_status = ?, version = version + 1
		WHERE id = ? AND deleted_at IS NULL
		RETURNING version`,
		time.Now().UTC().Format(time.RFC3339),
		SyncPending,
		id,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("delete expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense soft deleted", "id", id, "version", version)
	return version, nil
}

// ListExpenses returns every live expense, newest first. The ordering is a
// contract: the analytics aggregator's adjacency checks depend on it.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, occurred_at, amount_cents, category, description
		FROM expenses
		WHERE deleted_at IS NULL
		ORDER BY occurred_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := r.scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// GetExpense fetches a single live expense by id.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, occurred_at, amount_cents, category, description
		FROM expenses
		WHERE id = ? AND deleted_at IS NULL`, id)

	e, err := r.scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e          core.Expense
		occurredAt string
	)
	if err := row.Scan(&e.ID, &occurredAt, &e.Amount.Cents, &e.Category, &e.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, occurredAt)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse occurred_at %q: %w", occurredAt, err)
	}
	e.OccurredAt = ts.In(r.loc)
	return e, nil
}

// GetSettings loads the singleton settings row together with the unlocked
// achievement set.
func (r *SQLiteRepository) GetSettings(ctx context.Context) (core.Settings, error) {
	var (
		s           core.Settings
		budgetCents sql.NullInt64
		streak      core.StreakCache
		lastActive  string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT monthly_budget_cents, streak_current, streak_longest, streak_last_active_day, robot_taps
		FROM settings WHERE id = 1`).
		Scan(&budgetCents, &streak.Current, &streak.Longest, &lastActive, &s.RobotTaps)
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}

	if budgetCents.Valid {
		s.MonthlyBudget = &core.Money{Cents: budgetCents.Int64}
	}
	streak.LastActiveDay = core.DayKey(lastActive)
	if streak.Current > 0 || streak.Longest > 0 {
		s.Streak = &streak
	}

	unlocked, err := r.listUnlockedAchievements(ctx)
	if err != nil {
		return core.Settings{}, err
	}
	s.UnlockedAchievements = unlocked
	return s, nil
}

func (r *SQLiteRepository) listUnlockedAchievements(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT achievement_id FROM unlocked_achievements`)
	if err != nil {
		return nil, fmt.Errorf("list unlocked achievements: %w", err)
	}
	defer rows.Close()

	unlocked := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan achievement id: %w", err)
		}
		unlocked[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unlocked achievements: %w", err)
	}
	return unlocked, nil
}

// SaveStreakCache persists the reconciled streak counters.
func (r *SQLiteRepository) SaveStreakCache(ctx context.Context, cache core.StreakCache) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE settings
		SET streak_current = ?, streak_longest = ?, streak_last_active_day = ?, updated_at = ?
		WHERE id = 1`,
		cache.Current, cache.Longest, string(cache.LastActiveDay),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save streak cache: %w", err)
	}
	return nil
}

// SaveMonthlyBudget sets or clears the monthly budget.
func (r *SQLiteRepository) SaveMonthlyBudget(ctx context.Context, budget *core.Money) error {
	var cents sql.NullInt64
	if budget != nil {
		cents = sql.NullInt64{Int64: budget.Cents, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE settings SET monthly_budget_cents = ?, updated_at = ? WHERE id = 1`,
		cents, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save monthly budget: %w", err)
	}
	return nil
}

// IncrementRobotTaps bumps the cosmetic robot counter and returns the new
// total.
func (r *SQLiteRepository) IncrementRobotTaps(ctx context.Context) (int64, error) {
	var taps int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE settings SET robot_taps = robot_taps + 1, updated_at = ?
		WHERE id = 1
		RETURNING robot_taps`,
		time.Now().UTC().Format(time.RFC3339)).Scan(&taps)
	if err != nil {
		return 0, fmt.Errorf("increment robot taps: %w", err)
	}
	return taps, nil
}

// SaveUnlockedAchievements records badge ids append-only: already stored
// ids are ignored, nothing is ever removed.
func (r *SQLiteRepository) SaveUnlockedAchievements(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin achievements tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO unlocked_achievements (achievement_id, unlocked_at)
			VALUES (?, ?)`,
			id, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert achievement %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit achievements tx: %w", err)
	}
	return nil
}

// GetPendingSyncExpenses returns up to limit rows waiting for the mirror,
// oldest first.
func (r *SQLiteRepository) GetPendingSyncExpenses(ctx context.Context, limit int) ([]PendingSyncExpense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, created_at
		FROM expenses
		WHERE sync_status = ?
		ORDER BY created_at ASC
		LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync expenses: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncExpense
	for rows.Next() {
		var (
			p         PendingSyncExpense
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending expense: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			p.CreatedAt = ts
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get pending sync expenses: %w", err)
	}
	return pending, nil
}

// MarkSynced records a successful mirror write for the given version. A
// concurrent edit bumps the version, in which case the row stays pending
// and gets picked up again.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET sync_status = ?
		WHERE id = ? AND version = ?`,
		SyncSynced, id, version)
	if err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}

	slog.InfoContext(ctx, "Expense marked as synced", "id", id)
	return nil
}

// MarkSyncError flags a row whose mirror write failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET sync_status = ? WHERE id = ?`,
		SyncError, id)
	if err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}

	slog.WarnContext(ctx, "Expense marked with sync error", "id", id)
	return nil
}

// SyncRow is the current state of one expense as the sync worker sees it,
// soft deleted rows included.
type SyncRow struct {
	Expense core.Expense
	Version int64
	Deleted bool
}

// GetSyncRow fetches an expense regardless of deletion state. The worker
// uses the Deleted flag to pick between an append and a removal on the
// mirror.
func (r *SQLiteRepository) GetSyncRow(ctx context.Context, id string) (SyncRow, error) {
	var (
		row        SyncRow
		occurredAt string
		deletedAt  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, occurred_at, amount_cents, category, description, version, deleted_at
		FROM expenses WHERE id = ?`, id).
		Scan(&row.Expense.ID, &occurredAt, &row.Expense.Amount.Cents,
			&row.Expense.Category, &row.Expense.Description, &row.Version, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncRow{}, ErrNotFound
	}
	if err != nil {
		return SyncRow{}, fmt.Errorf("get sync row: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, occurredAt)
	if err != nil {
		return SyncRow{}, fmt.Errorf("parse occurred_at %q: %w", occurredAt, err)
	}
	row.Expense.OccurredAt = ts.In(r.loc)
	row.Deleted = deletedAt.Valid
	return row, nil
}
