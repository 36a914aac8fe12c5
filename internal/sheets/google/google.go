package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"consultoria/internal/export/xlsx"
	"consultoria/internal/log"
	ports "consultoria/internal/sheets"
)

// DefaultSheet is the tab the Summary is mirrored to.
const DefaultSheet = "Summary"

// Ensure interface conformance
var (
	_ ports.SummaryWriter = (*Client)(nil)
	_ ports.SummaryReader = (*Client)(nil)
)

type Options struct {
	SpreadsheetID string
	Sheet         string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
	// ClientOptions replace credential handling entirely, for tests.
	ClientOptions []goption.ClientOption
	Logger        *log.Logger
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if opts.Sheet == "" {
		opts.Sheet = DefaultSheet
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	logger := opts.Logger.WithComponent(log.ComponentSheets)

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		creds, err := serviceAccountJSON(opts.CredentialsJSON, opts.CredentialsFile)
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "sheet", opts.Sheet)

	return &Client{svc: svc, spreadsheetID: opts.SpreadsheetID, sheet: opts.Sheet, logger: logger}, nil
}

// serviceAccountJSON resolves inline or file credentials, falling back to
// GOOGLE_APPLICATION_CREDENTIALS.
func serviceAccountJSON(inline, file string) ([]byte, error) {
	inline, file = strings.TrimSpace(inline), strings.TrimSpace(file)
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
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

func (c *Client) columns() string { return fmt.Sprintf("%s!A:F", c.sheet) }

// WriteSummary clears the mirrored columns and writes header plus rows.
func (c *Client) WriteSummary(ctx context.Context, rows []xlsx.SummaryRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.columns(), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear summary: %w", err)
	}

	rng := fmt.Sprintf("%s!A1", c.sheet)
	vr := &gsheet.ValueRange{Values: summaryValues(rows)}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("update summary: %w", err)
	}

	c.logger.InfoContext(ctx, "Summary mirrored to Google Sheets",
		log.FieldCount, len(rows),
		"updated_range", resp.UpdatedRange)
	return resp.UpdatedRange, nil
}

func (c *Client) ReadSummary(ctx context.Context) ([]xlsx.SummaryRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.columns()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	return parseSummary(resp.Values)
}
