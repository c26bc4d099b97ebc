package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"contabile/internal/core"
	"contabile/internal/services"
	"contabile/internal/storage"
)

type fakeExtractor struct {
	entries []core.LedgerEntry
	err     error
}

func (f fakeExtractor) Extract(context.Context, string, []byte) ([]core.LedgerEntry, error) {
	return f.entries, f.err
}

func newTestServer(t *testing.T, extractor ReceiptExtractor) *Server {
	t.Helper()
	store, err := storage.NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	periods := services.NewPeriodService(store, nil)
	ledger := services.NewLedgerService(store)
	budgets := services.NewBudgetService(store)
	return NewServer(":0", periods, ledger, budgets, extractor)
}

func doJSON(t *testing.T, srv *Server, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor", actor)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCloseAndReopenPeriod(t *testing.T) {
	srv := newTestServer(t, nil)
	body := map[string]any{"year": 2025, "month": 3, "notes": "month end"}

	rr := doJSON(t, srv, http.MethodPost, "/periods/close", "alice", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("close status=%d body=%s", rr.Code, rr.Body.String())
	}
	var p periodResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Status != "CLOSED" || p.ClosedBy != "alice" || p.ClosedAt == nil {
		t.Fatalf("unexpected period: %+v", p)
	}

	// Double close conflicts.
	rr = doJSON(t, srv, http.MethodPost, "/periods/close", "bob", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("second close status=%d, want 409", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, "/periods/reopen", "carol", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("reopen status=%d body=%s", rr.Code, rr.Body.String())
	}
	p = periodResponse{}
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Status != "OPEN" || p.ClosedBy != "" || p.ClosedAt != nil {
		t.Fatalf("reopened period: %+v", p)
	}

	// Reopening an open period conflicts.
	rr = doJSON(t, srv, http.MethodPost, "/periods/reopen", "carol", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("second reopen status=%d, want 409", rr.Code)
	}
}

func TestPeriodTransitionValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	// Missing actor header.
	rr := doJSON(t, srv, http.MethodPost, "/periods/close", "", map[string]any{"year": 2025, "month": 3})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing actor status=%d, want 400", rr.Code)
	}

	// Month out of range.
	rr = doJSON(t, srv, http.MethodPost, "/periods/close", "alice", map[string]any{"year": 2025, "month": 13})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad month status=%d, want 400", rr.Code)
	}

	// Wrong method.
	rr = doJSON(t, srv, http.MethodGet, "/periods/close", "alice", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET close status=%d, want 405", rr.Code)
	}
}

func TestListPeriods(t *testing.T) {
	srv := newTestServer(t, nil)
	for month := 1; month <= 3; month++ {
		rr := doJSON(t, srv, http.MethodPost, "/periods/close", "alice",
			map[string]any{"year": 2025, "month": month})
		if rr.Code != http.StatusOK {
			t.Fatalf("close %d status=%d", month, rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/periods?year=2025", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var ps []periodResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &ps); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(ps) != 3 {
		t.Fatalf("periods = %d, want 3", len(ps))
	}

	rr = doJSON(t, srv, http.MethodGet, "/periods?year=2025&month=2", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get single status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/periods?year=2025&month=7", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unmaterialized period status=%d, want 404", rr.Code)
	}
}

func TestAuthorizationEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := doJSON(t, srv, http.MethodPost, "/periods/close", "alice", map[string]any{"year": 2025, "month": 3})
	if rr.Code != http.StatusOK {
		t.Fatalf("close status=%d", rr.Code)
	}

	tests := []struct {
		query       string
		wantStatus  int
		wantAllowed bool
	}{
		{"date=2025-03-15&kind=create", http.StatusOK, false},
		{"date=2025-04-01&kind=create", http.StatusOK, true},
		{"date=2025-03-15&kind=delete", http.StatusOK, false},
		{"date=2025-03-15&kind=audit", http.StatusBadRequest, false},
		{"date=15-03-2025&kind=create", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		rr := doJSON(t, srv, http.MethodGet, "/ledger/authorization?"+tt.query, "", nil)
		if rr.Code != tt.wantStatus {
			t.Fatalf("%s: status=%d, want %d", tt.query, rr.Code, tt.wantStatus)
		}
		if tt.wantStatus != http.StatusOK {
			continue
		}
		var auth authorizationResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &auth); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if auth.Allowed != tt.wantAllowed {
			t.Fatalf("%s: allowed=%v, want %v", tt.query, auth.Allowed, tt.wantAllowed)
		}
		if !auth.Allowed && auth.Reason != services.ReasonPeriodLocked {
			t.Fatalf("%s: reason=%q", tt.query, auth.Reason)
		}
	}
}

func TestLedgerEntryLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	entry := map[string]any{
		"date":        "2025-03-10",
		"description": "office supplies",
		"amount":      "45.90",
		"category":    "operations",
	}

	rr := doJSON(t, srv, http.MethodPost, "/ledger/entries", "alice", entry)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created entryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.AmountCents != 4590 || created.Date != "2025-03-10" {
		t.Fatalf("created entry: %+v", created)
	}

	// Update.
	entry["amount"] = "50.00"
	rr = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/ledger/entries/%d", created.ID), "alice", entry)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}

	// List.
	rr = doJSON(t, srv, http.MethodGet, "/ledger/entries?year=2025&month=3", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var entries []entryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 1 || entries[0].AmountCents != 5000 {
		t.Fatalf("entries: %+v", entries)
	}

	// Delete.
	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/ledger/entries/%d", created.ID), "alice", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/ledger/entries/%d", created.ID), "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get deleted status=%d, want 404", rr.Code)
	}
}

func TestLedgerEntryLockedPeriod(t *testing.T) {
	srv := newTestServer(t, nil)

	entry := map[string]any{
		"date":        "2025-03-10",
		"description": "rent",
		"amount":      "800.00",
		"category":    "housing",
	}
	rr := doJSON(t, srv, http.MethodPost, "/ledger/entries", "alice", entry)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}
	var created entryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	rr = doJSON(t, srv, http.MethodPost, "/periods/close", "alice", map[string]any{"year": 2025, "month": 3})
	if rr.Code != http.StatusOK {
		t.Fatalf("close status=%d", rr.Code)
	}

	// All mutations in the closed period answer 423.
	rr = doJSON(t, srv, http.MethodPost, "/ledger/entries", "alice", entry)
	if rr.Code != http.StatusLocked {
		t.Fatalf("create in closed period status=%d, want 423", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/ledger/entries/%d", created.ID), "alice", entry)
	if rr.Code != http.StatusLocked {
		t.Fatalf("update in closed period status=%d, want 423", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/ledger/entries/%d", created.ID), "alice", nil)
	if rr.Code != http.StatusLocked {
		t.Fatalf("delete in closed period status=%d, want 423", rr.Code)
	}

	// Reads still work.
	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/ledger/entries/%d", created.ID), "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("read in closed period status=%d, want 200", rr.Code)
	}
}

func TestLedgerEntryValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"bad date", map[string]any{"date": "10/03/2025", "description": "x", "amount": "1.00", "category": "misc"}, http.StatusBadRequest},
		{"bad amount", map[string]any{"date": "2025-03-10", "description": "x", "amount": "abc", "category": "misc"}, http.StatusBadRequest},
		{"empty description", map[string]any{"date": "2025-03-10", "description": "", "amount": "1.00", "category": "misc"}, http.StatusUnprocessableEntity},
		{"empty category", map[string]any{"date": "2025-03-10", "description": "x", "amount": "1.00", "category": ""}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/ledger/entries", "alice", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d (body=%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestBudgetLifecycleAndReconciliation(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := doJSON(t, srv, http.MethodPost, "/budgets", "alice", map[string]any{
		"name":        "Groceries March",
		"category":    "groceries",
		"amount":      "500.00",
		"period_type": "monthly",
		"year":        2025,
		"month":       3,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create budget status=%d body=%s", rr.Code, rr.Body.String())
	}
	var budget budgetResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &budget); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if budget.AmountCents != 50000 || budget.CreatedBy != "alice" {
		t.Fatalf("budget: %+v", budget)
	}

	rr = doJSON(t, srv, http.MethodPost, "/ledger/entries", "alice", map[string]any{
		"date":        "2025-03-12",
		"description": "supermarket",
		"amount":      "200.00",
		"category":    "groceries",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create entry status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/budgets/vs-actual?id=%d", budget.ID), "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("vs-actual status=%d body=%s", rr.Code, rr.Body.String())
	}
	var report reportResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.ActualCents != 20000 || report.RemainingCents != 30000 || report.PercentageUsed != 40 {
		t.Fatalf("report: %+v", report)
	}

	// Period-wide reconciliation.
	rr = doJSON(t, srv, http.MethodGet, "/budgets/vs-actual?year=2025&month=3", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("period vs-actual status=%d", rr.Code)
	}
	var reports []reportResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &reports); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}

	// Budgets stay editable when the period is closed.
	rr = doJSON(t, srv, http.MethodPost, "/periods/close", "alice", map[string]any{"year": 2025, "month": 3})
	if rr.Code != http.StatusOK {
		t.Fatalf("close status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/budgets/%d", budget.ID), "alice", map[string]any{
		"name":        "Groceries March",
		"category":    "groceries",
		"amount":      "600.00",
		"period_type": "monthly",
		"year":        2025,
		"month":       3,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update budget in closed period status=%d, want 200", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/budgets/%d", budget.ID), "alice", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete budget status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/budgets/vs-actual?id=%d", budget.ID), "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("vs-actual for deleted budget status=%d, want 404", rr.Code)
	}
}

func TestBudgetValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	// Monthly budget without a month.
	rr := doJSON(t, srv, http.MethodPost, "/budgets", "alice", map[string]any{
		"name":        "broken",
		"amount":      "100.00",
		"period_type": "monthly",
		"year":        2025,
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422", rr.Code)
	}

	// Yearly budget with a month.
	rr = doJSON(t, srv, http.MethodPost, "/budgets", "alice", map[string]any{
		"name":        "broken",
		"amount":      "100.00",
		"period_type": "yearly",
		"year":        2025,
		"month":       3,
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422", rr.Code)
	}
}

func TestExtractReceiptEndpoint(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		srv := newTestServer(t, nil)
		req := httptest.NewRequest(http.MethodPost, "/receipts/extract", strings.NewReader("fake"))
		req.Header.Set("Content-Type", "image/png")
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status=%d, want 503", rr.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		srv := newTestServer(t, fakeExtractor{entries: []core.LedgerEntry{{
			Date:        core.NewDate(2025, 3, 10),
			Description: "milk",
			Amount:      core.Money{Cents: 150},
			Category:    "groceries",
		}}})
		req := httptest.NewRequest(http.MethodPost, "/receipts/extract", strings.NewReader("fake-image-bytes"))
		req.Header.Set("Content-Type", "image/png")
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
		var resp extractResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(resp.Candidates) != 1 || resp.Candidates[0].AmountCents != 150 {
			t.Fatalf("candidates: %+v", resp.Candidates)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		srv := newTestServer(t, fakeExtractor{})
		req := httptest.NewRequest(http.MethodPost, "/receipts/extract", strings.NewReader("hello"))
		req.Header.Set("Content-Type", "text/plain")
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnsupportedMediaType {
			t.Fatalf("status=%d, want 415", rr.Code)
		}
	})

	t.Run("extractor failure", func(t *testing.T) {
		srv := newTestServer(t, fakeExtractor{err: errors.New("model down")})
		req := httptest.NewRequest(http.MethodPost, "/receipts/extract", strings.NewReader("fake"))
		req.Header.Set("Content-Type", "image/jpeg")
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadGateway {
			t.Fatalf("status=%d, want 502", rr.Code)
		}
	})
}
