package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kobitar/internal/core"
	ports "kobitar/internal/sheets"
)

const (
	DefaultCollectionsSheet = "Collections"
	DefaultExpensesSheet    = "Expenses"
)

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID      string
	CollectionsSheet   string
	ExpensesSheet      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Client reads and writes the two household sheets. Collections hold
// Name | Amount; Expenses hold Name | Date | Goods | Amount. Row 1 is the
// header on both.
type Client struct {
	svc              *gsheet.Service
	spreadsheetID    string
	collectionsSheet string
	expensesSheet    string
}

var _ ports.Store = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	c := &Client{
		svc:              svc,
		spreadsheetID:    strings.TrimSpace(cfg.SpreadsheetID),
		collectionsSheet: strings.TrimSpace(cfg.CollectionsSheet),
		expensesSheet:    strings.TrimSpace(cfg.ExpensesSheet),
	}
	if c.collectionsSheet == "" {
		c.collectionsSheet = DefaultCollectionsSheet
	}
	if c.expensesSheet == "" {
		c.expensesSheet = DefaultExpensesSheet
	}
	return c
}

// newSheetsService uses inline JSON, a key file, or GOOGLE_APPLICATION_CREDENTIALS,
// in that order.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials", "component", "sheets")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read credentials file", "component", "sheets", "path", serviceAccountFile, "size", len(b))
		credentialsJSON = b
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

func (c *Client) read(ctx context.Context, rng string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func cell(row []any, idx int) any {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func cellText(row []any, idx int) string {
	v := cell(row, idx)
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func emptyRow(row []any) bool {
	for i := range row {
		if cellText(row, i) != "" {
			return false
		}
	}
	return true
}

func (c *Client) ListCollections(ctx context.Context) ([]core.CollectionRow, error) {
	values, err := c.read(ctx, fmt.Sprintf("%s!A2:B", c.collectionsSheet))
	if err != nil {
		return nil, err
	}
	out := make([]core.CollectionRow, 0, len(values))
	for _, row := range values {
		if emptyRow(row) {
			continue
		}
		out = append(out, core.CollectionRow{Name: cellText(row, 0), Amount: core.LooseAmount(cell(row, 1))})
	}
	return out, nil
}

func (c *Client) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	values, err := c.read(ctx, fmt.Sprintf("%s!A2:D", c.expensesSheet))
	if err != nil {
		return nil, err
	}
	out := make([]core.ExpenseRecord, 0, len(values))
	for _, row := range values {
		if emptyRow(row) {
			continue
		}
		out = append(out, core.ExpenseRecord{
			Name:   cellText(row, 0),
			Date:   cellText(row, 1),
			Item:   cellText(row, 2),
			Amount: core.LooseAmount(cell(row, 3)),
		})
	}
	return out, nil
}

func (c *Client) AppendExpense(ctx context.Context, e core.ExpenseRecord) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:D", c.expensesSheet)
	vr := &gsheet.ValueRange{Values: [][]any{{e.Name, e.Date, e.Item, e.Amount.String()}}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.expensesSheet, err)
	}
	return nil
}

// ClearExpenses empties every data row and leaves the header in place.
func (c *Client) ClearExpenses(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A2:D", c.expensesSheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

// UpdateCollectionAmount overwrites the amount of the first row whose name
// matches, or appends a new row when none does.
func (c *Client) UpdateCollectionAmount(ctx context.Context, name string, amount decimal.Decimal) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", core.ErrEmptyName
	}
	values, err := c.read(ctx, fmt.Sprintf("%s!A2:A", c.collectionsSheet))
	if err != nil {
		return "", err
	}
	for i, row := range values {
		if !strings.EqualFold(cellText(row, 0), name) {
			continue
		}
		rng := fmt.Sprintf("%s!B%d", c.collectionsSheet, i+2)
		vr := &gsheet.ValueRange{Values: [][]any{{amount.String()}}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("update %s: %w", rng, err)
		}
		return fmt.Sprintf("Updated %s to %s", name, amount.String()), nil
	}

	rng := fmt.Sprintf("%s!A:B", c.collectionsSheet)
	vr := &gsheet.ValueRange{Values: [][]any{{name, amount.String()}}}
	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("append to %s: %w", c.collectionsSheet, err)
	}
	return fmt.Sprintf("Added %s with %s", name, amount.String()), nil
}
