package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"contabile/internal/core"
)

type budgetRequest struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Amount     string `json:"amount"`
	PeriodType string `json:"period_type"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
}

type budgetResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	PeriodType  string    `json:"period_type"`
	Year        int       `json:"year"`
	Month       int       `json:"month,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:          b.ID,
		Name:        b.Name,
		Category:    b.Category,
		AmountCents: b.Amount.Cents,
		PeriodType:  string(b.PeriodType),
		Year:        b.Year,
		Month:       b.Month,
		CreatedBy:   b.CreatedBy,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

type reportResponse struct {
	BudgetID       int64   `json:"budget_id"`
	Name           string  `json:"name"`
	Category       string  `json:"category,omitempty"`
	Year           int     `json:"year"`
	Month          int     `json:"month,omitempty"`
	BudgetedCents  int64   `json:"budgeted_cents"`
	ActualCents    int64   `json:"actual_cents"`
	RemainingCents int64   `json:"remaining_cents"`
	PercentageUsed float64 `json:"percentage_used"`
}

func toReportResponse(r core.BudgetVsActual) reportResponse {
	return reportResponse{
		BudgetID:       r.BudgetID,
		Name:           r.Name,
		Category:       r.Category,
		Year:           r.Year,
		Month:          r.Month,
		BudgetedCents:  r.Budgeted.Cents,
		ActualCents:    r.Actual.Cents,
		RemainingCents: r.Remaining.Cents,
		PercentageUsed: r.PercentageUsed,
	}
}

func decodeBudgetRequest(w http.ResponseWriter, r *http.Request) (core.Budget, bool) {
	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return core.Budget{}, false
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeBadRequest(w, "invalid amount")
		return core.Budget{}, false
	}

	return core.Budget{
		Name:       sanitizeInput(req.Name),
		Category:   sanitizeInput(req.Category),
		Amount:     core.Money{Cents: cents},
		PeriodType: core.BudgetPeriodType(strings.ToLower(strings.TrimSpace(req.PeriodType))),
		Year:       req.Year,
		Month:      req.Month,
	}, true
}

// handleBudgets serves POST (create) and GET (list by year) on /budgets.
func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		budget, ok := decodeBudgetRequest(w, r)
		if !ok {
			return
		}
		budget.CreatedBy = actorFrom(r)

		created, err := s.budgets.Create(r.Context(), budget)
		if err != nil {
			writeError(w, r, err)
			return
		}

		slog.InfoContext(r.Context(), "Budget created",
			"id", created.ID,
			"name", created.Name,
			"actor", created.CreatedBy)
		writeJSON(w, http.StatusCreated, toBudgetResponse(created))

	case http.MethodGet:
		year := 0
		if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
			y, err := strconv.Atoi(v)
			if err != nil {
				writeBadRequest(w, "invalid year")
				return
			}
			year = y
		}

		budgets, err := s.budgets.List(r.Context(), year)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]budgetResponse, 0, len(budgets))
		for _, b := range budgets {
			out = append(out, toBudgetResponse(b))
		}
		writeJSON(w, http.StatusOK, out)

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// handleBudgetByID serves GET, PUT, and DELETE on /budgets/{id}.
func (s *Server) handleBudgetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDSuffix(r, "/budgets/")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		budget, err := s.budgets.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBudgetResponse(budget))

	case http.MethodPut:
		budget, ok := decodeBudgetRequest(w, r)
		if !ok {
			return
		}
		budget.ID = id

		updated, err := s.budgets.Update(r.Context(), budget)
		if err != nil {
			writeError(w, r, err)
			return
		}

		slog.InfoContext(r.Context(), "Budget updated", "id", id)
		writeJSON(w, http.StatusOK, toBudgetResponse(updated))

	case http.MethodDelete:
		if err := s.budgets.Delete(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}

		slog.InfoContext(r.Context(), "Budget deleted", "id", id)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, "GET, PUT, DELETE")
	}
}

// handleBudgetVsActual serves GET /budgets/vs-actual. With an id
// parameter it reconciles one budget; with year and month it
// reconciles every budget covering that period.
func (s *Server) handleBudgetVsActual(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	if v := strings.TrimSpace(r.URL.Query().Get("id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeBadRequest(w, "invalid id")
			return
		}

		report, err := s.budgets.BudgetVsActual(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toReportResponse(report))
		return
	}

	year, month, err := parseYearMonth(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	reports, err := s.budgets.BudgetVsActualForPeriod(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]reportResponse, 0, len(reports))
	for _, rep := range reports {
		out = append(out, toReportResponse(rep))
	}
	writeJSON(w, http.StatusOK, out)
}
