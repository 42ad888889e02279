package memory

import (
	"context"
	"testing"
	"time"

	"spendlog/internal/core"
)

func testExpense(id string) core.Expense {
	return core.Expense{
		ID:          id,
		OccurredAt:  time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		Amount:      core.Money{Cents: 450},
		Category:    "coffee",
		Description: "morning espresso",
	}
}

func TestStoreAppendAndRemove(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Append(ctx, testExpense("a"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ref == "" {
		t.Error("expected a row reference")
	}
	if !s.Contains("a") {
		t.Error("expected a to be mirrored")
	}

	if err := s.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Contains("a") {
		t.Error("expected a removed")
	}

	// Removing an unknown id is fine.
	if err := s.Remove(ctx, "never-seen"); err != nil {
		t.Errorf("Remove of unknown id: %v", err)
	}
}

func TestStoreAppendRejectsInvalid(t *testing.T) {
	s := New()

	bad := testExpense("b")
	bad.Category = ""
	if _, err := s.Append(context.Background(), bad); err == nil {
		t.Error("expected validation error")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStoreAppendIdempotentPerID(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Append(ctx, testExpense("a"))
	s.Append(ctx, testExpense("a"))

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after re-append of same id", s.Len())
	}
}
