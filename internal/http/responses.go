package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"spendlog/internal/analytics"
	"spendlog/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// logHandlerError ties handler failures back to the request id the
// middleware assigned.
func logHandlerError(ctx context.Context, msg string, args ...any) {
	args = append(args, "request_id", requestIDFrom(ctx))
	slog.ErrorContext(ctx, msg, args...)
}

type expenseResponse struct {
	ID          string `json:"id"`
	OccurredAt  string `json:"occurred_at"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func newExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		OccurredAt:  e.OccurredAt.Format(time.RFC3339),
		Amount:      e.Amount.String(),
		AmountCents: e.Amount.Cents,
		Category:    e.Category,
		Description: e.Description,
	}
}

type streakResponse struct {
	Current      int  `json:"current"`
	Longest      int  `json:"longest"`
	TrackedToday bool `json:"tracked_today"`
}

type budgetResponse struct {
	Configured             bool    `json:"configured"`
	DailyRateCents         int64   `json:"daily_rate_cents"`
	ProjectedCents         int64   `json:"projected_cents"`
	AdjustedCents          int64   `json:"adjusted_cents"`
	SafeToSpendPerDayCents int64   `json:"safe_to_spend_per_day_cents"`
	PercentOfBudget        float64 `json:"percent_of_budget"`
	Pace                   string  `json:"pace"`
}

func newBudgetResponse(p analytics.Projection) *budgetResponse {
	if !p.OK {
		return nil
	}
	return &budgetResponse{
		Configured:             p.Class != analytics.PaceNone,
		DailyRateCents:         p.DailyRateCents,
		ProjectedCents:         p.ProjectedCents,
		AdjustedCents:          p.AdjustedCents,
		SafeToSpendPerDayCents: p.SafeToSpendPerDayCents,
		PercentOfBudget:        p.PercentOfBudget,
		Pace:                   string(p.Class),
	}
}

type achievementResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Secret   bool   `json:"secret"`
	Unlocked bool   `json:"unlocked"`
}

func newAchievementResponses(defs []analytics.AchievementDef, unlocked map[string]bool) []achievementResponse {
	out := make([]achievementResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, achievementResponse{
			ID:       def.ID,
			Title:    def.Title,
			Secret:   def.Secret,
			Unlocked: unlocked[def.ID],
		})
	}
	return out
}

type challengeResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"`
	Complete   bool   `json:"complete"`
	Progress   string `json:"progress"`
}

func newChallengeResponse(sel analytics.ChallengeSelection) challengeResponse {
	return challengeResponse{
		ID:         sel.Challenge.ID,
		Title:      sel.Challenge.Title,
		Difficulty: sel.Challenge.Difficulty,
		Complete:   sel.Complete,
		Progress:   sel.Progress,
	}
}

type heatmapDayResponse struct {
	Day        string `json:"day"`
	Level      string `json:"level"`
	TotalCents int64  `json:"total_cents"`
}

func newHeatmapResponses(levels map[core.DayKey]analytics.Level, dayCents map[core.DayKey]int64) []heatmapDayResponse {
	out := make([]heatmapDayResponse, 0, len(levels))
	for day, level := range levels {
		out = append(out, heatmapDayResponse{
			Day:        string(day),
			Level:      string(level),
			TotalCents: dayCents[day],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

type categoryResponse struct {
	Category   string `json:"category"`
	Count      int    `json:"count"`
	TotalCents int64  `json:"total_cents"`
}

func newCategoryResponses(counts map[string]int, cents map[string]int64) []categoryResponse {
	out := make([]categoryResponse, 0, len(counts))
	for category, count := range counts {
		out = append(out, categoryResponse{
			Category:   category,
			Count:      count,
			TotalCents: cents[category],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCents != out[j].TotalCents {
			return out[i].TotalCents > out[j].TotalCents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

type dashboardResponse struct {
	TotalCount    int                   `json:"total_count"`
	TotalCents    int64                 `json:"total_cents"`
	DailyAvgCents int64                 `json:"daily_avg_cents"`
	Streak        streakResponse        `json:"streak"`
	Budget        *budgetResponse       `json:"budget,omitempty"`
	BaselineCents int64                 `json:"baseline_cents"`
	Heatmap       []heatmapDayResponse  `json:"heatmap"`
	Achievements  []achievementResponse `json:"achievements"`
	Challenge     challengeResponse     `json:"challenge"`
	RobotTaps     int64                 `json:"robot_taps"`
}

func newDashboardResponse(d analytics.Derived) dashboardResponse {
	return dashboardResponse{
		TotalCount:    d.Stats.TotalCount,
		TotalCents:    d.Stats.TotalCents,
		DailyAvgCents: d.Stats.AverageDailyCents(),
		Streak: streakResponse{
			Current:      d.Streak.Current,
			Longest:      d.Streak.Longest,
			TrackedToday: d.Streak.TrackedToday,
		},
		Budget:        newBudgetResponse(d.Budget),
		BaselineCents: d.Baseline,
		Heatmap:       newHeatmapResponses(d.Heatmap, d.Stats.DayCents),
		Achievements: newAchievementResponses(
			analytics.VisibleAchievements(analytics.AchievementRegistry(), d.ProposedSettings.UnlockedAchievements),
			d.ProposedSettings.UnlockedAchievements,
		),
		Challenge: newChallengeResponse(d.Challenge),
		RobotTaps: d.Stats.RobotTaps,
	}
}

type overviewResponse struct {
	Month         string             `json:"month"`
	TotalCount    int                `json:"total_count"`
	TotalCents    int64              `json:"total_cents"`
	DailyAvgCents int64              `json:"daily_avg_cents"`
	ActiveDays    int                `json:"active_days"`
	Categories    []categoryResponse `json:"categories"`
}

func newOverviewResponse(year int, month time.Month, stats analytics.Stats) overviewResponse {
	return overviewResponse{
		Month:         fmt.Sprintf("%04d-%02d", year, int(month)),
		TotalCount:    stats.TotalCount,
		TotalCents:    stats.TotalCents,
		DailyAvgCents: stats.AverageDailyCents(),
		ActiveDays:    len(stats.ActiveDays),
		Categories:    newCategoryResponses(stats.CategoryCounts, stats.CategoryCents),
	}
}

type settingsResponse struct {
	Budget       *string        `json:"budget"`
	BudgetCents  *int64         `json:"budget_cents"`
	Streak       streakResponse `json:"streak"`
	RobotTaps    int64          `json:"robot_taps"`
	UnlockedSize int            `json:"unlocked_achievements"`
}

func newSettingsResponse(d analytics.Derived) settingsResponse {
	resp := settingsResponse{
		Streak: streakResponse{
			Current:      d.Streak.Current,
			Longest:      d.Streak.Longest,
			TrackedToday: d.Streak.TrackedToday,
		},
		RobotTaps:    d.Stats.RobotTaps,
		UnlockedSize: len(d.ProposedSettings.UnlockedAchievements),
	}
	if b := d.ProposedSettings.MonthlyBudget; b != nil {
		formatted := b.String()
		resp.Budget = &formatted
		resp.BudgetCents = &b.Cents
	}
	return resp
}
