package http

import (
	"net/http"
	"strconv"
	"time"

	"spendlog/internal/analytics"
	"spendlog/internal/core"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	allowed, blocked := s.metrics.snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"rate_limiter": map[string]int64{
			"allowed": allowed,
			"blocked": blocked,
		},
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	derived, err := s.analytics.Dashboard(r.Context())
	if err != nil {
		logHandlerError(r.Context(), "Failed to compute dashboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute dashboard")
		return
	}
	writeJSON(w, http.StatusOK, newDashboardResponse(derived))
}

// handleHeatmap serves the current month by default; from and to query
// parameters (YYYY-MM-DD, inclusive) select an arbitrary range instead.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	derived, err := s.analytics.Dashboard(r.Context())
	if err != nil {
		logHandlerError(r.Context(), "Failed to compute heatmap", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute heatmap")
		return
	}

	levels := derived.Heatmap
	fromParam := r.URL.Query().Get("from")
	toParam := r.URL.Query().Get("to")
	if fromParam != "" || toParam != "" {
		from, ok1 := parseDayParam(fromParam)
		to, ok2 := parseDayParam(toParam)
		if !ok1 || !ok2 || to.Before(from) {
			writeError(w, http.StatusBadRequest, "invalid range, want from=YYYY-MM-DD&to=YYYY-MM-DD")
			return
		}
		levels = analytics.Heatmap(derived.Stats.DayCents, from, to, derived.Today, derived.Baseline)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"baseline_cents": derived.Baseline,
		"days":           newHeatmapResponses(levels, derived.Stats.DayCents),
	})
}

func parseDayParam(s string) (core.DayKey, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return "", false
	}
	return core.DayKeyOf(t), true
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	derived, err := s.analytics.Dashboard(r.Context())
	if err != nil {
		logHandlerError(r.Context(), "Failed to evaluate achievements", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to evaluate achievements")
		return
	}
	writeJSON(w, http.StatusOK, newDashboardResponse(derived).Achievements)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	derived, err := s.analytics.Dashboard(r.Context())
	if err != nil {
		logHandlerError(r.Context(), "Failed to select challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to select challenge")
		return
	}
	writeJSON(w, http.StatusOK, newChallengeResponse(derived.Challenge))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	derived, err := s.analytics.Dashboard(r.Context())
	if err != nil {
		logHandlerError(r.Context(), "Failed to load settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, newSettingsResponse(derived))
}

// handleOverview serves per-category totals for one calendar month,
// defaulting to the current one.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	derived, err := s.analytics.Dashboard(r.Context())
	if err != nil {
		logHandlerError(r.Context(), "Failed to compute overview", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute overview")
		return
	}

	year, month, ok := overviewMonth(r, derived.Today)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid year/month")
		return
	}

	stats, err := s.analytics.MonthOverview(r.Context(), year, month)
	if err != nil {
		logHandlerError(r.Context(), "Failed to compute overview", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute overview")
		return
	}
	writeJSON(w, http.StatusOK, newOverviewResponse(year, month, stats))
}

// overviewMonth resolves the year and month query parameters, falling back
// to today's month when both are absent.
func overviewMonth(r *http.Request, today core.DayKey) (int, time.Month, bool) {
	yearParam := r.URL.Query().Get("year")
	monthParam := r.URL.Query().Get("month")
	if yearParam == "" && monthParam == "" {
		t, err := time.Parse("2006-01-02", string(today))
		if err != nil {
			return 0, 0, false
		}
		return t.Year(), t.Month(), true
	}

	year, err := strconv.Atoi(yearParam)
	if err != nil || year < 1970 || year > 9999 {
		return 0, 0, false
	}
	month, err := strconv.Atoi(monthParam)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, time.Month(month), true
}
