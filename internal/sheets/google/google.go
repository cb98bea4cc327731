package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"hcms/internal/export"
	"hcms/internal/report"
	ports "hcms/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// maxTitleLen is the longest sheet title Google Sheets accepts.
const maxTitleLen = 100

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ ports.ReportPublisher = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// New wraps an existing service; tests point it at a fake endpoint.
func New(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// PublishDoctorExport writes exp into its own tab, replacing whatever a
// previous export of the same doctor and range left there.
func (c *Client) PublishDoctorExport(ctx context.Context, exp report.DoctorExport) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	title := SheetTitle(exp)
	if err := c.ensureSheet(ctx, title); err != nil {
		return "", err
	}

	rng := quoteTitle(title)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear sheet %s: %w", title, err)
	}

	values := ExportValues(exp)
	target := rng + "!A1"
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write sheet %s: %w", title, err)
	}

	ref := fmt.Sprintf("%s!A1:E%d", rng, len(values))
	slog.InfoContext(ctx, "Doctor export published to Google Sheets",
		"doctor_id", exp.Doctor.ID, "sheet", title, "rows", len(values))
	return ref, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	return nil
}

// SheetTitle names the tab an export is published to.
func SheetTitle(exp report.DoctorExport) string {
	title := strings.TrimSuffix(exp.FileName("x"), ".x")
	title = strings.TrimPrefix(title, "report_")
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen])
	}
	return title
}

func quoteTitle(title string) string {
	return "'" + title + "'"
}

// ExportValues lays the export out top to bottom: heading, summary metrics,
// then the service and lab tables separated by a blank row.
func ExportValues(exp report.DoctorExport) [][]any {
	values := [][]any{{exp.Title()}, {exp.RangeLabel()}, {}}
	values = append(values, export.SummaryTable(exp)...)
	values = append(values, []any{}, []any{"Services"})
	values = append(values, export.ChargeTable(exp.Services, "Service")...)
	values = append(values, []any{}, []any{"Lab Records"})
	values = append(values, export.ChargeTable(exp.Labs, "Lab Test")...)
	return values
}
