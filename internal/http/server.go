// Package http exposes the period locking, ledger, and budget
// reconciliation operations as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"contabile/internal/core"
	"contabile/internal/middleware/trace"
	"contabile/internal/services"
)

// ReceiptExtractor proposes ledger entries from an uploaded receipt.
type ReceiptExtractor interface {
	Extract(ctx context.Context, mimeType string, data []byte) ([]core.LedgerEntry, error)
}

type Server struct {
	http.Server

	periods   *services.PeriodService
	ledger    *services.LedgerService
	budgets   *services.BudgetService
	extractor ReceiptExtractor

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes and middleware, returning a
// ready-to-run http.Server.
func NewServer(addr string, periods *services.PeriodService, ledger *services.LedgerService, budgets *services.BudgetService, extractor ReceiptExtractor) *Server {
	mux := http.NewServeMux()

	s := &Server{
		periods:     periods,
		ledger:      ledger,
		budgets:     budgets,
		extractor:   extractor,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/periods", s.withProtection(s.handlePeriods))
	mux.HandleFunc("/periods/close", s.withProtection(s.handleClosePeriod))
	mux.HandleFunc("/periods/reopen", s.withProtection(s.handleReopenPeriod))

	mux.HandleFunc("/ledger/authorization", s.withProtection(s.handleAuthorization))
	mux.HandleFunc("/ledger/entries", s.withProtection(s.handleEntries))
	mux.HandleFunc("/ledger/entries/", s.withProtection(s.handleEntryByID))

	mux.HandleFunc("/budgets", s.withProtection(s.handleBudgets))
	mux.HandleFunc("/budgets/", s.withProtection(s.handleBudgetByID))
	mux.HandleFunc("/budgets/vs-actual", s.withProtection(s.handleBudgetVsActual))

	mux.HandleFunc("/receipts/extract", s.withProtection(s.handleExtractReceipt))

	traceMw := trace.NewMiddleware(extractClientIP)
	s.Server = http.Server{
		Addr:    addr,
		Handler: traceMw.Middleware(mux),
	}
	return s
}

// withProtection applies rate limiting to mutating requests and sets
// baseline response headers.
func (s *Server) withProtection(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			clientIP := extractClientIP(r)
			if !s.rateLimiter.allow(clientIP) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP, "method", r.Method, "path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
				return
			}
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		next(w, r)
	}
}

func extractClientIP(r *http.Request) string {
	clientIP := r.Header.Get("X-Forwarded-For")
	if clientIP == "" {
		clientIP = r.Header.Get("X-Real-IP")
	}
	if clientIP == "" {
		clientIP = r.RemoteAddr
	}
	return clientIP
}

// Shutdown gracefully shuts down the server and cleanup routines.
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

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
