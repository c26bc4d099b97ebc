package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"contabile/internal/core"
)

type entryRequest struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
}

type entryResponse struct {
	ID          int64     `json:"id"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toEntryResponse(e core.LedgerEntry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		Date:        e.Date.Format("2006-01-02"),
		Description: e.Description,
		AmountCents: e.Amount.Cents,
		Category:    e.Category,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func decodeEntryRequest(w http.ResponseWriter, r *http.Request) (core.LedgerEntry, bool) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return core.LedgerEntry{}, false
	}

	date, err := parseDate(req.Date)
	if err != nil {
		writeBadRequest(w, err.Error())
		return core.LedgerEntry{}, false
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeBadRequest(w, "invalid amount")
		return core.LedgerEntry{}, false
	}

	return core.LedgerEntry{
		Date:        date,
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
		Category:    sanitizeInput(req.Category),
	}, true
}

// handleEntries serves POST (create) and GET (list by period) on
// /ledger/entries.
func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		entry, ok := decodeEntryRequest(w, r)
		if !ok {
			return
		}

		created, err := s.ledger.Create(r.Context(), entry)
		if err != nil {
			writeError(w, r, err)
			return
		}

		slog.InfoContext(r.Context(), "Ledger entry created",
			"id", created.ID,
			"category", created.Category,
			"amount_cents", created.Amount.Cents)
		writeJSON(w, http.StatusCreated, toEntryResponse(created))

	case http.MethodGet:
		year, month, err := parseYearMonth(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}

		entries, err := s.ledger.List(r.Context(), year, month)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]entryResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, toEntryResponse(e))
		}
		writeJSON(w, http.StatusOK, out)

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// handleEntryByID serves GET, PUT, and DELETE on /ledger/entries/{id}.
func (s *Server) handleEntryByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDSuffix(r, "/ledger/entries/")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		entry, err := s.ledger.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryResponse(entry))

	case http.MethodPut:
		entry, ok := decodeEntryRequest(w, r)
		if !ok {
			return
		}
		entry.ID = id

		updated, err := s.ledger.Update(r.Context(), entry)
		if err != nil {
			writeError(w, r, err)
			return
		}

		slog.InfoContext(r.Context(), "Ledger entry updated", "id", id)
		writeJSON(w, http.StatusOK, toEntryResponse(updated))

	case http.MethodDelete:
		if err := s.ledger.Delete(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}

		slog.InfoContext(r.Context(), "Ledger entry deleted", "id", id)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, "GET, PUT, DELETE")
	}
}
