package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"contabile/internal/core"
)

type periodResponse struct {
	ID        int64      `json:"id"`
	Year      int        `json:"year"`
	Month     int        `json:"month"`
	Status    string     `json:"status"`
	ClosedBy  string     `json:"closed_by,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toPeriodResponse(p core.Period) periodResponse {
	return periodResponse{
		ID:        p.ID,
		Year:      p.Year,
		Month:     p.Month,
		Status:    string(p.Status),
		ClosedBy:  p.ClosedBy,
		ClosedAt:  p.ClosedAt,
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type periodTransitionRequest struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Notes string `json:"notes"`
}

func decodeTransitionRequest(w http.ResponseWriter, r *http.Request) (periodTransitionRequest, string, bool) {
	var req periodTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return req, "", false
	}

	actor := actorFrom(r)
	if actor == "" {
		writeBadRequest(w, "missing X-Actor header")
		return req, "", false
	}
	req.Notes = sanitizeInput(req.Notes)
	return req, actor, true
}

// handlePeriods answers GET /periods. With a month parameter it
// returns the single materialized period, otherwise all periods of
// the year.
func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	year, month, err := parseYearMonth(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if strings.TrimSpace(r.URL.Query().Get("month")) != "" {
		p, err := s.periods.Get(r.Context(), year, month)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toPeriodResponse(p))
		return
	}

	ps, err := s.periods.List(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]periodResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPeriodResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClosePeriod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	req, actor, ok := decodeTransitionRequest(w, r)
	if !ok {
		return
	}

	p, err := s.periods.Close(r.Context(), req.Year, req.Month, actor, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Period closed",
		"year", p.Year, "month", p.Month, "actor", actor)
	writeJSON(w, http.StatusOK, toPeriodResponse(p))
}

func (s *Server) handleReopenPeriod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	req, actor, ok := decodeTransitionRequest(w, r)
	if !ok {
		return
	}

	p, err := s.periods.Reopen(r.Context(), req.Year, req.Month, actor, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Period reopened",
		"year", p.Year, "month", p.Month, "actor", actor)
	writeJSON(w, http.StatusOK, toPeriodResponse(p))
}

type authorizationResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// handleAuthorization answers the advisory write guard query:
// GET /ledger/authorization?date=YYYY-MM-DD&kind=create|update|delete.
func (s *Server) handleAuthorization(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	date, err := parseDate(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	kind := core.WriteKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if err := kind.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	auth, err := s.periods.Authorize(r.Context(), date, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authorizationResponse{
		Allowed: auth.Allowed,
		Reason:  auth.Reason,
	})
}
