package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/storage"
)

const maxBodyBytes = 64 << 10

type createExpenseRequest struct {
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	OccurredAt  string `json:"occurred_at,omitempty"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(req.Amount))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	expense := core.Expense{
		Amount:      core.Money{Cents: cents},
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
	}

	if req.OccurredAt != "" {
		occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid occurred_at, want RFC3339")
			return
		}
		expense.OccurredAt = occurredAt
	}

	created, err := s.expenses.CreateExpense(r.Context(), expense)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		logHandlerError(r.Context(), "Failed to create expense", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create expense")
		return
	}

	s.analytics.InvalidateCache()
	writeJSON(w, http.StatusCreated, newExpenseResponse(created))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing expense id")
		return
	}

	if err := s.expenses.DeleteExpense(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "expense not found")
			return
		}
		logHandlerError(r.Context(), "Failed to delete expense", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}

	s.analytics.InvalidateCache()
	w.WriteHeader(http.StatusNoContent)
}

type setBudgetRequest struct {
	// Budget is a decimal amount; null or empty clears the budget.
	Budget *string `json:"budget"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req setBudgetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var budget *core.Money
	if req.Budget != nil && strings.TrimSpace(*req.Budget) != "" {
		cents, err := core.ParseDecimalToCents(strings.TrimSpace(*req.Budget))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid budget amount")
			return
		}
		budget = &core.Money{Cents: cents}
	}

	if err := s.expenses.SetMonthlyBudget(r.Context(), budget); err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		logHandlerError(r.Context(), "Failed to save budget", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save budget")
		return
	}

	s.analytics.InvalidateCache()

	resp := map[string]any{"budget": nil}
	if budget != nil {
		resp["budget"] = budget.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRobotTap(w http.ResponseWriter, r *http.Request) {
	taps, err := s.expenses.TapRobot(r.Context())
	if err != nil {
		logHandlerError(r.Context(), "Failed to record robot tap", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record tap")
		return
	}

	s.analytics.InvalidateCache()
	writeJSON(w, http.StatusOK, map[string]int64{"taps": taps})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// sanitizeInput strips control characters that have no business in a
// category or description.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrMissingTimestamp),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyDescription):
		return true
	}
	return strings.Contains(err.Error(), "description too long")
}
