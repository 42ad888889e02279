package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"spendlog/internal/analytics"
	"spendlog/internal/core"
)

// ExpenseAPI is the write surface the handlers call.
type ExpenseAPI interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	SetMonthlyBudget(ctx context.Context, budget *core.Money) error
	TapRobot(ctx context.Context) (int64, error)
}

// AnalyticsAPI is the read surface: derived state, cached per day, plus
// exact per-month aggregation for the overview.
type AnalyticsAPI interface {
	Dashboard(ctx context.Context) (analytics.Derived, error)
	MonthOverview(ctx context.Context, year int, month time.Month) (analytics.Stats, error)
	InvalidateCache()
}

type Server struct {
	http.Server

	expenses  ExpenseAPI
	analytics AnalyticsAPI

	rateLimiter *rateLimiter
	metrics     *securityMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, expenses ExpenseAPI, analyticsAPI AnalyticsAPI) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		expenses:    expenses,
		analytics:   analyticsAPI,
		rateLimiter: newRateLimiter(),
		metrics:     &securityMetrics{},
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /expenses", s.withSecurityHeaders(s.handleCreateExpense))
	mux.HandleFunc("DELETE /expenses/{id}", s.withSecurityHeaders(s.handleDeleteExpense))

	mux.HandleFunc("GET /dashboard", s.withSecurityHeaders(s.handleDashboard))
	mux.HandleFunc("GET /heatmap", s.withSecurityHeaders(s.handleHeatmap))
	mux.HandleFunc("GET /achievements", s.withSecurityHeaders(s.handleAchievements))
	mux.HandleFunc("GET /challenge", s.withSecurityHeaders(s.handleChallenge))
	mux.HandleFunc("GET /overview", s.withSecurityHeaders(s.handleOverview))

	mux.HandleFunc("GET /settings", s.withSecurityHeaders(s.handleGetSettings))
	mux.HandleFunc("PUT /settings/budget", s.withSecurityHeaders(s.handleSetBudget))
	mux.HandleFunc("POST /robot/tap", s.withSecurityHeaders(s.handleRobotTap))

	return s
}

// Shutdown stops the HTTP listener and the limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers, per-IP rate limiting on
// writes, and request logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", clientIP)

		if isWrite(r.Method) && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

type requestIDKey struct{}

// requestIDFrom returns the middleware-assigned request id, or "" for a
// request that bypassed the middleware.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
