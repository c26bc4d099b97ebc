package http

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const maxReceiptBytes = 10 << 20 // 10 MiB

var allowedReceiptTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
}

type extractResponse struct {
	Candidates []entryResponse `json:"candidates"`
}

// handleExtractReceipt serves POST /receipts/extract. The request body
// is the raw receipt document; its Content-Type tells the model what
// it is looking at. Extracted entries are proposals only and must be
// submitted through /ledger/entries to reach the ledger.
func (s *Server) handleExtractReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	if s.extractor == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "receipt extraction not configured"})
		return
	}

	mimeType := strings.TrimSpace(r.Header.Get("Content-Type"))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if !allowedReceiptTypes[mimeType] {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: "unsupported receipt type " + mimeType})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReceiptBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "receipt too large"})
		return
	}
	if len(body) == 0 {
		writeBadRequest(w, "empty request body")
		return
	}

	entries, err := s.extractor.Extract(r.Context(), mimeType, body)
	if err != nil {
		slog.ErrorContext(r.Context(), "Receipt extraction failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "extraction failed"})
		return
	}

	out := extractResponse{Candidates: make([]entryResponse, 0, len(entries))}
	for _, e := range entries {
		out.Candidates = append(out.Candidates, toEntryResponse(e))
	}

	slog.InfoContext(r.Context(), "Receipt extracted",
		"mime_type", mimeType,
		"candidates", len(out.Candidates))
	writeJSON(w, http.StatusOK, out)
}
