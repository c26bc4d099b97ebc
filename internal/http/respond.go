package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"contabile/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors onto HTTP status codes. Locked
// periods answer 423 so clients can tell a lock from a conflict.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrInvalidPeriod):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrPeriodNotFound),
		errors.Is(err, core.ErrBudgetNotFound),
		errors.Is(err, core.ErrEntryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrAlreadyClosed),
		errors.Is(err, core.ErrNotClosed):
		status = http.StatusConflict
	case errors.Is(err, core.ErrPeriodLocked):
		status = http.StatusLocked
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrMonthRequired),
		errors.Is(err, core.ErrMonthForbidden):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}
