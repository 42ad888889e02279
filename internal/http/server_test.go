package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spendlog/internal/analytics"
	"spendlog/internal/core"
	"spendlog/internal/storage"
)

type fakeExpenseAPI struct {
	created    []core.Expense
	deleted    []string
	deleteErr  error
	budget     *core.Money
	budgetSet  bool
	taps       int64
	createFail error
}

func (f *fakeExpenseAPI) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if f.createFail != nil {
		return core.Expense{}, f.createFail
	}
	if e.ID == "" {
		e.ID = "exp_1"
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	f.created = append(f.created, e)
	return e, nil
}

func (f *fakeExpenseAPI) DeleteExpense(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeExpenseAPI) SetMonthlyBudget(_ context.Context, budget *core.Money) error {
	if budget != nil {
		if err := budget.Validate(); err != nil {
			return err
		}
	}
	f.budget = budget
	f.budgetSet = true
	return nil
}

func (f *fakeExpenseAPI) TapRobot(context.Context) (int64, error) {
	f.taps++
	return f.taps, nil
}

type fakeAnalyticsAPI struct {
	derived      analytics.Derived
	expenses     []core.Expense
	err          error
	invalidated  int
	dashboardHit int
}

func (f *fakeAnalyticsAPI) Dashboard(context.Context) (analytics.Derived, error) {
	f.dashboardHit++
	if f.err != nil {
		return analytics.Derived{}, f.err
	}
	return f.derived, nil
}

func (f *fakeAnalyticsAPI) MonthOverview(_ context.Context, year int, month time.Month) (analytics.Stats, error) {
	if f.err != nil {
		return analytics.Stats{}, f.err
	}
	key := fmt.Sprintf("%04d-%02d", year, int(month))
	return analytics.AggregateMonth(f.expenses, key, core.Settings{}), nil
}

func (f *fakeAnalyticsAPI) InvalidateCache() { f.invalidated++ }

func testSnapshot() analytics.Snapshot {
	at := func(day, hour int) time.Time {
		return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
	}
	budget := core.Money{Cents: 30000}
	return analytics.Snapshot{
		Expenses: []core.Expense{
			{ID: "c3", OccurredAt: at(10, 8), Amount: core.Money{Cents: 450}, Category: "coffee", Description: "espresso"},
			{ID: "c2", OccurredAt: at(9, 8), Amount: core.Money{Cents: 450}, Category: "coffee", Description: "espresso"},
			{ID: "c1", OccurredAt: at(8, 8), Amount: core.Money{Cents: 450}, Category: "coffee", Description: "espresso"},
		},
		Settings: core.Settings{MonthlyBudget: &budget},
		Now:      at(10, 14),
	}
}

func newTestServer(t *testing.T) (*Server, *fakeExpenseAPI, *fakeAnalyticsAPI) {
	t.Helper()
	snap := testSnapshot()
	expenses := &fakeExpenseAPI{}
	analyticsAPI := &fakeAnalyticsAPI{derived: analytics.Compute(snap), expenses: snap.Expenses}
	s := NewServer(":0", expenses, analyticsAPI)
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s, expenses, analyticsAPI
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateExpense(t *testing.T) {
	s, expenses, analyticsAPI := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/expenses",
		`{"amount":"4.50","category":"coffee","description":"espresso"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusCreated, rec.Body)
	}
	if len(expenses.created) != 1 {
		t.Fatalf("created %d expenses, want 1", len(expenses.created))
	}
	if got := expenses.created[0].Amount.Cents; got != 450 {
		t.Errorf("amount cents = %d, want 450", got)
	}
	if analyticsAPI.invalidated != 1 {
		t.Errorf("cache invalidations = %d, want 1", analyticsAPI.invalidated)
	}

	var resp expenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" {
		t.Error("response missing id")
	}
	if resp.Amount != "4.50" {
		t.Errorf("formatted amount = %q, want %q", resp.Amount, "4.50")
	}
}

func TestCreateExpenseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid amount", `{"amount":"abc","category":"coffee","description":"x"}`, http.StatusUnprocessableEntity},
		{"zero amount", `{"amount":"0","category":"coffee","description":"x"}`, http.StatusUnprocessableEntity},
		{"empty category", `{"amount":"4.50","category":"  ","description":"x"}`, http.StatusUnprocessableEntity},
		{"bad timestamp", `{"amount":"4.50","category":"coffee","description":"x","occurred_at":"yesterday"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"amount":`, http.StatusBadRequest},
		{"unknown field", `{"amount":"4.50","category":"coffee","description":"x","color":"red"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, expenses, analyticsAPI := newTestServer(t)
			rec := doRequest(s, http.MethodPost, "/expenses", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body %s", rec.Code, tt.want, rec.Body)
			}
			if len(expenses.created) != 0 {
				t.Error("invalid request reached the service")
			}
			if analyticsAPI.invalidated != 0 {
				t.Error("cache invalidated on failed request")
			}
		})
	}
}

func TestDeleteExpense(t *testing.T) {
	s, expenses, analyticsAPI := newTestServer(t)

	rec := doRequest(s, http.MethodDelete, "/expenses/exp_42", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if len(expenses.deleted) != 1 || expenses.deleted[0] != "exp_42" {
		t.Errorf("deleted = %v, want [exp_42]", expenses.deleted)
	}
	if analyticsAPI.invalidated != 1 {
		t.Errorf("cache invalidations = %d, want 1", analyticsAPI.invalidated)
	}
}

func TestDeleteExpenseNotFound(t *testing.T) {
	s, expenses, _ := newTestServer(t)
	expenses.deleteErr = fmt.Errorf("soft delete expense: %w", storage.ErrNotFound)

	rec := doRequest(s, http.MethodDelete, "/expenses/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDashboard(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body)
	}

	var resp dashboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalCount != 3 {
		t.Errorf("total_count = %d, want 3", resp.TotalCount)
	}
	if resp.Streak.Current != 3 {
		t.Errorf("streak.current = %d, want 3", resp.Streak.Current)
	}
	if resp.Budget == nil || resp.Budget.Pace != "on_track" {
		t.Errorf("budget = %+v, want on_track pace", resp.Budget)
	}
	if len(resp.Heatmap) != 31 {
		t.Errorf("heatmap days = %d, want 31", len(resp.Heatmap))
	}
	if resp.Challenge.ID == "" {
		t.Error("challenge missing")
	}
	// Locked secrets stay hidden.
	for _, a := range resp.Achievements {
		if a.Secret && !a.Unlocked {
			t.Errorf("locked secret %s exposed", a.ID)
		}
	}
}

func TestOverview(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/overview", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp overviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Month != "2026-03" {
		t.Errorf("month = %q, want %q", resp.Month, "2026-03")
	}
	if resp.TotalCents != 1350 {
		t.Errorf("total_cents = %d, want 1350", resp.TotalCents)
	}
	if len(resp.Categories) != 1 || resp.Categories[0].Category != "coffee" {
		t.Errorf("categories = %+v, want single coffee entry", resp.Categories)
	}
}

func TestOverviewExplicitMonth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/overview?year=2026&month=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp overviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Month != "2026-02" || resp.TotalCents != 0 {
		t.Errorf("got %s/%d cents, want empty 2026-02", resp.Month, resp.TotalCents)
	}

	rec = doRequest(s, http.MethodGet, "/overview?year=2026&month=13", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid month status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetSettings(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp settingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Budget == nil || *resp.Budget != "300.00" {
		t.Errorf("budget = %v, want 300.00", resp.Budget)
	}
	if resp.Streak.Current != 3 {
		t.Errorf("streak.current = %d, want 3", resp.Streak.Current)
	}
}

func TestHeatmap(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/heatmap", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		BaselineCents int64                `json:"baseline_cents"`
		Days          []heatmapDayResponse `json:"days"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BaselineCents != 967 {
		t.Errorf("baseline_cents = %d, want 967", resp.BaselineCents)
	}
	if len(resp.Days) != 31 {
		t.Fatalf("days = %d, want 31", len(resp.Days))
	}
	// Sorted ascending, future days empty.
	if resp.Days[0].Day != "2026-03-01" || resp.Days[30].Day != "2026-03-31" {
		t.Errorf("day range = %s..%s", resp.Days[0].Day, resp.Days[30].Day)
	}
	if resp.Days[30].Level != string(analytics.LevelEmpty) {
		t.Errorf("future day level = %s, want empty", resp.Days[30].Level)
	}
}

func TestHeatmapExplicitRange(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/heatmap?from=2026-03-08&to=2026-03-10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body)
	}
	var resp struct {
		Days []heatmapDayResponse `json:"days"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Days) != 3 {
		t.Fatalf("days = %d, want 3", len(resp.Days))
	}
	for _, d := range resp.Days {
		if d.TotalCents != 450 {
			t.Errorf("day %s total = %d, want 450", d.Day, d.TotalCents)
		}
	}

	rec = doRequest(s, http.MethodGet, "/heatmap?from=2026-03-10&to=2026-03-01", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSetBudget(t *testing.T) {
	s, expenses, analyticsAPI := newTestServer(t)

	rec := doRequest(s, http.MethodPut, "/settings/budget", `{"budget":"300.00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body)
	}
	if expenses.budget == nil || expenses.budget.Cents != 30000 {
		t.Errorf("budget = %+v, want 30000 cents", expenses.budget)
	}
	if analyticsAPI.invalidated != 1 {
		t.Errorf("cache invalidations = %d, want 1", analyticsAPI.invalidated)
	}

	rec = doRequest(s, http.MethodPut, "/settings/budget", `{"budget":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !expenses.budgetSet || expenses.budget != nil {
		t.Errorf("budget not cleared: %+v", expenses.budget)
	}

	rec = doRequest(s, http.MethodPut, "/settings/budget", `{"budget":"-5"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative budget status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestRobotTap(t *testing.T) {
	s, _, _ := newTestServer(t)

	for want := int64(1); want <= 3; want++ {
		rec := doRequest(s, http.MethodPost, "/robot/tap", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var resp map[string]int64
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp["taps"] != want {
			t.Errorf("taps = %d, want %d", resp["taps"], want)
		}
	}
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	s, _, _ := newTestServer(t)

	var got string
	handler := s.withSecurityHeaders(func(w http.ResponseWriter, r *http.Request) {
		got = requestIDFrom(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	handler(httptest.NewRecorder(), req)

	if !strings.HasPrefix(got, "req_") {
		t.Errorf("request id = %q, want req_ prefix", got)
	}

	// Outside the middleware there is no id.
	if id := requestIDFrom(context.Background()); id != "" {
		t.Errorf("bare context request id = %q, want empty", id)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/dashboard", "")
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	s, _, _ := newTestServer(t)

	var last int
	for i := 0; i <= rateLimitMax; i++ {
		rec := doRequest(s, http.MethodPost, "/robot/tap", "")
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("request %d status = %d, want %d", rateLimitMax+1, last, http.StatusTooManyRequests)
	}

	// Reads are never limited.
	rec := doRequest(s, http.MethodGet, "/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Errorf("read after limit status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(s, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.7:1234", "", "203.0.113.7"},
		{"trusted proxy forwards", "10.0.0.1:1234", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
		{"untrusted proxy ignored", "203.0.113.7:1234", "1.2.3.4", "203.0.113.7"},
		{"garbage forward falls back", "10.0.0.1:1234", "not-an-ip", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Errorf("extractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
