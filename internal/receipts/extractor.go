// Package receipts extracts candidate ledger entries from receipt
// images and PDFs using a generative model. Extraction only proposes
// entries; nothing is written to the ledger until a caller submits
// them through the normal guarded path.
package receipts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contabile/internal/core"

	"google.golang.org/genai"
)

const extractionPrompt = "You are a receipt parser for an accounting back-office.\n\n" +
	"Task:\n" +
	"- Extract ALL purchase line items (or the receipt total if line items are unreadable) from the attached receipt.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a JSON array of objects.\n\n" +
	"Each object must have these fields:\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"description\": string\n" +
	"- \"amount\": string, decimal with dot separator (e.g. \"12.50\"), always positive\n" +
	"- \"category\": string, a short lowercase spending category (e.g. \"groceries\", \"transport\", \"dining\")\n\n" +
	"Rules:\n" +
	"- Use the receipt date for every item; if no date is visible, use today's date.\n" +
	"- Return ONLY valid raw JSON.\n" +
	"- Do NOT wrap the response in code fences.\n" +
	"- Do NOT use ```json or any Markdown.\n" +
	"- Output must begin with \"[\" and end with \"]\".\n"

// Generator produces the raw model text for a prompt plus an attached
// document. Satisfied by GeminiGenerator in production and by fakes in
// tests.
type Generator interface {
	Generate(ctx context.Context, prompt, mimeType string, data []byte) (string, error)
}

type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     data,
					},
				},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

type Extractor struct {
	gen Generator
	now func() time.Time
}

func NewExtractor(gen Generator) *Extractor {
	return &Extractor{gen: gen, now: time.Now}
}

type rawItem struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
}

// Extract parses a receipt document into candidate ledger entries.
// Items the model emits that fail validation are dropped, not
// returned as errors; a receipt with some unreadable lines should
// still yield the readable ones.
func (e *Extractor) Extract(ctx context.Context, mimeType string, data []byte) ([]core.LedgerEntry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	raw, err := e.gen.Generate(ctx, extractionPrompt, mimeType, data)
	if err != nil {
		return nil, fmt.Errorf("extract receipt: %w", err)
	}

	clean := cleanModelJSON(raw)

	var items []rawItem
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		return nil, fmt.Errorf("unmarshal model output: %w", err)
	}

	entries := make([]core.LedgerEntry, 0, len(items))
	for _, item := range items {
		entry, err := e.toEntry(item)
		if err != nil {
			slog.WarnContext(ctx, "Dropping unusable receipt item",
				"description", item.Description,
				"error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (e *Extractor) toEntry(item rawItem) (core.LedgerEntry, error) {
	date := core.Date{}
	if strings.TrimSpace(item.Date) != "" {
		t, err := time.Parse("2006-01-02", item.Date)
		if err != nil {
			return core.LedgerEntry{}, fmt.Errorf("parse date %q: %w", item.Date, err)
		}
		date = core.Date{Time: t}
	} else {
		now := e.now().UTC()
		date = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}

	cents, err := core.ParseDecimalToCents(item.Amount)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("parse amount %q: %w", item.Amount, err)
	}

	entry := core.LedgerEntry{
		Date:        date,
		Description: strings.TrimSpace(item.Description),
		Amount:      core.Money{Cents: cents},
		Category:    strings.ToLower(strings.TrimSpace(item.Category)),
	}
	if err := entry.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}
	return entry, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk that
// models emit despite instructions, keeping the outermost JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
