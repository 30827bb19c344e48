// Package sheets mirrors expenses into a Google Sheets tab, one row per
// expense keyed by its id in column A.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/core"
)

// Header is written to an empty sheet before the first row.
var Header = []any{"ID", "Date", "Category", "Description", "Amount", "User", "Created At"}

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string

	// A saved user token takes precedence over the service account.
	OAuthTokenFile  string
	OAuthClientJSON string
	OAuthClientFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *slog.Logger
}

// New authenticates with the saved OAuth token when cfg names one, and
// otherwise with a service account taken from cfg, falling back to
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.OAuthTokenFile) != "" {
		hc, err := oauthHTTPClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewWithOptions(ctx, cfg.SpreadsheetID, cfg.SheetName, logger, goption.WithHTTPClient(hc))
	}
	creds, err := credentialsJSON(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, cfg.SpreadsheetID, cfg.SheetName, logger,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions builds a client from raw API options, e.g. a custom endpoint.
func NewWithOptions(ctx context.Context, spreadsheetID, sheetName string, logger *slog.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Expenses"
	}
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName, logger: logger}, nil
}

func credentialsJSON(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Row renders e in sheet column order.
func Row(e core.Expense) []any {
	return []any{
		e.ID.String(),
		e.Date.String(),
		e.Category.String(),
		e.Description,
		e.Amount.InexactFloat64(),
		e.OwnerID.String(),
		e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// existingIDs reads column A. The first element is the header when present.
func (c *Client) existingIDs(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	ids := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			ids[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return ids, nil
}

// Export appends the expenses not yet present in the sheet and returns how
// many rows were written. Expenses without an id are skipped.
func (c *Client) Export(ctx context.Context, expenses []core.Expense) (int, error) {
	ids, err := c.existingIDs(ctx)
	if err != nil {
		return 0, err
	}

	empty := len(ids) == 0
	var rows [][]any
	for _, e := range expenses {
		if e.ID.IsZero() || slices.Contains(ids, e.ID.String()) {
			continue
		}
		ids = append(ids, e.ID.String())
		rows = append(rows, Row(e))
	}
	written := len(rows)
	if written == 0 {
		return 0, nil
	}
	if empty {
		rows = append([][]any{Header}, rows...)
	}

	rng := fmt.Sprintf("%s!A:G", c.sheetName)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", c.sheetName, err)
	}

	c.logger.InfoContext(ctx, "Expenses exported to Google Sheets", "count", written, "sheet", c.sheetName)
	return written, nil
}

// Delete removes the row holding id. A missing row is not an error.
func (c *Client) Delete(ctx context.Context, id core.ID) error {
	ids, err := c.existingIDs(ctx)
	if err != nil {
		return err
	}
	row := slices.Index(ids, id.String())
	if row < 0 {
		c.logger.DebugContext(ctx, "Expense not in sheet, nothing to delete", "expense_id", id)
		return nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(row),
			EndIndex:   int64(row + 1),
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d: %w", row+1, err)
	}
	c.logger.InfoContext(ctx, "Expense removed from Google Sheets", "expense_id", id, "row", row+1)
	return nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheetName {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheetName)
}
