package core

import (
	"testing"
	"time"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -50}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		OccurredAt:  time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
		Amount:      Money{Cents: 500},
		Category:    "coffee",
		Description: "flat white",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Expense)
	}{
		{"zero timestamp", func(e *Expense) { e.OccurredAt = time.Time{} }},
		{"zero amount", func(e *Expense) { e.Amount = Money{} }},
		{"empty category", func(e *Expense) { e.Category = "  " }},
		{"empty description", func(e *Expense) { e.Description = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := good
			tc.mutate(&e)
			if err := e.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestExpenseWellFormed(t *testing.T) {
	ts := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		e    Expense
		want bool
	}{
		{"normal", Expense{OccurredAt: ts, Amount: Money{Cents: 100}}, true},
		{"zero amount allowed", Expense{OccurredAt: ts}, true},
		{"negative amount", Expense{OccurredAt: ts, Amount: Money{Cents: -1}}, false},
		{"missing timestamp", Expense{Amount: Money{Cents: 100}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.e.WellFormed(); got != tc.want {
				t.Fatalf("WellFormed() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSettingsCloneUnlocked(t *testing.T) {
	s := Settings{UnlockedAchievements: map[string]bool{"first_expense": true}}
	clone := s.CloneUnlocked()
	clone["getting_started"] = true
	if s.Unlocked("getting_started") {
		t.Fatal("mutating the clone leaked into the original settings")
	}
	if !clone["first_expense"] {
		t.Fatal("clone missing existing entry")
	}
}
