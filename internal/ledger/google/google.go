// Package google implements the category ledger ports against a Google
// Sheets spreadsheet. The ledger sheet is an append-only table whose columns
// are: id, tag name, then baseline financial fields defaulted to zero.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"reactorops/internal/ledger"
)

// baselineColumns is the number of zeroed financial columns following the
// name column in every new ledger row.
const baselineColumns = 4

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerSheet   string
}

var (
	_ ledger.TagReader = (*Client)(nil)
	_ ledger.TagWriter = (*Client)(nil)
)

// NewFromEnv creates a ledger client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS. Optional: LEDGER_SHEET_NAME
// (default "Categories").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(os.Getenv("LEDGER_SHEET_NAME"))
	if sheet == "" {
		sheet = "Categories"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		ledgerSheet:   sheet,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
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

// ListTags implements ledger.TagReader by reading the name column.
func (c *Client) ListTags(ctx context.Context) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!B2:B", c.ledgerSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	var out []string
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if s, ok := row[0].(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out, nil
}

// UpsertTags implements ledger.TagWriter. Existing tag names are read first
// and only missing ones are appended, so re-delivered sync messages never
// produce duplicate rows. Row ids are derived from the sheet position the
// append lands on, not from a read-max-and-increment pass.
func (c *Client) UpsertTags(ctx context.Context, tags []string) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	existing, err := c.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list existing tags: %w", err)
	}
	present := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		present[name] = struct{}{}
	}

	var missing []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := present[tag]; ok {
			continue
		}
		present[tag] = struct{}{}
		missing = append(missing, tag)
	}
	if len(missing) == 0 {
		return nil, nil
	}

	// First data row is 2 (row 1 is the header); the id equals the row
	// offset the appended block starts at.
	nextID := len(existing) + 1
	values := make([][]any, 0, len(missing))
	for i, tag := range missing {
		row := []any{nextID + i, tag}
		for range baselineColumns {
			row = append(row, 0)
		}
		values = append(values, row)
	}

	rng := fmt.Sprintf("%s!A2", c.ledgerSheet)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng,
		&gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("append ledger rows: %w", err)
	}

	slog.InfoContext(ctx, "Appended category tags to ledger",
		"sheet", c.ledgerSheet, "tags", missing)
	return missing, nil
}
