// Package google provides a Google Sheets ReportWriter that appends
// reconciliation snapshot rows to a configured spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"contabile/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ export.ReportWriter = (*Client)(nil)

// New creates a Sheets-backed report writer. Credentials come from the
// inline service account JSON, the given file, or the standard
// GOOGLE_APPLICATION_CREDENTIALS path, in that order.
func New(ctx context.Context, spreadsheetID, sheetName, serviceAccountJSON, serviceAccountFile string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "Reconciliation"
	}

	svc, err := newSheetsService(ctx, serviceAccountJSON, serviceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	serviceAccountJSON = strings.TrimSpace(serviceAccountJSON)
	serviceAccountFile = strings.TrimSpace(serviceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// WriteSnapshot appends one row per budget report. Row layout:
// period, event, budget name, category, budgeted, actual, remaining,
// percentage used.
func (c *Client) WriteSnapshot(ctx context.Context, s export.Snapshot) error {
	if len(s.Reports) == 0 {
		return nil
	}

	values := make([][]interface{}, 0, len(s.Reports))
	for _, r := range s.Reports {
		values = append(values, []interface{}{
			fmt.Sprintf("%04d-%02d", s.Year, s.Month),
			s.Event,
			r.Name,
			r.Category,
			r.Budgeted.Units(),
			r.Actual.Units(),
			r.Remaining.Units(),
			r.PercentageUsed,
		})
	}

	vr := &gsheet.ValueRange{Values: values}
	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.sheetName+"!A:H", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append snapshot rows: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot exported to Google Sheets",
		"spreadsheet_id", c.spreadsheetID,
		"sheet", c.sheetName,
		"rows", len(values),
		"year", s.Year,
		"month", s.Month)
	return nil
}
