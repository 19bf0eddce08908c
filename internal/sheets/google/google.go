package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"green/internal/core"
	"green/internal/report"
	ports "green/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	recordsSheet  string
	loc           *time.Location
}

// Ensure interface conformance
var _ ports.Publisher = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_RECORDS_SHEET_NAME (default "Records").
func NewFromEnv(ctx context.Context, loc *time.Location) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	recordsSheet := strings.TrimSpace(os.Getenv("GOOGLE_RECORDS_SHEET_NAME"))
	if recordsSheet == "" {
		recordsSheet = "Records"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID, recordsSheet, loc), nil
}

// New wraps an existing service.
func New(svc *gsheet.Service, spreadsheetID, recordsSheet string, loc *time.Location) *Client {
	if loc == nil {
		loc = core.Civil()
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, recordsSheet: recordsSheet, loc: loc}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
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

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// AppendRecords appends rows under the records sheet header, creating the
// sheet and header on first use.
func (c *Client) AppendRecords(ctx context.Context, recs []core.WasteRecord) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	if len(recs) == 0 {
		return 0, nil
	}

	created, err := c.ensureSheet(ctx, c.recordsSheet)
	if err != nil {
		return 0, err
	}

	values := make([][]any, 0, len(recs)+1)
	if created {
		header := make([]any, len(ports.RecordHeader))
		for i, h := range ports.RecordHeader {
			header[i] = h
		}
		values = append(values, header)
	}
	for _, r := range recs {
		values = append(values, ports.RecordRow(r, c.loc))
	}

	rng := fmt.Sprintf("%s!A:I", quoteSheet(c.recordsSheet))
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("append to sheet %s: %w", c.recordsSheet, err)
	}
	return len(recs), nil
}

// PublishTable clears the worksheet named after the table's period and
// writes the table values into it.
func (c *Client) PublishTable(ctx context.Context, t *report.Table) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	name := t.SheetName()
	if _, err := c.ensureSheet(ctx, name); err != nil {
		return "", err
	}

	sheet := quoteSheet(name)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, sheet, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("clear sheet %s: %w", name, err)
	}

	values := ports.TableValues(t)
	rng := fmt.Sprintf("%s!A1", sheet)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write sheet %s: %w", name, err)
	}

	width := 0
	if len(values) > 0 {
		width = len(values[0])
	}
	return fmt.Sprintf("%s!A1:%s%d", sheet, columnName(width), len(values)), nil
}

// ensureSheet adds the named worksheet if the spreadsheet lacks it and
// reports whether it was created.
func (c *Client) ensureSheet(ctx context.Context, name string) (bool, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == name {
			return false, nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("add sheet %s: %w", name, err)
	}
	return true, nil
}

// quoteSheet quotes a sheet name for use in A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnName converts a 1-based column number to its letters.
func columnName(n int) string {
	if n < 1 {
		return "A"
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
