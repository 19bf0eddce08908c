package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"green/internal/core"
	"green/internal/report"
)

type call struct {
	method string
	path   string
	body   gsheet.ValueRange
}

type stubSheets struct {
	mu       sync.Mutex
	existing []string
	calls    []call
	failOn   string
}

func (s *stubSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := call{method: r.Method, path: r.URL.Path}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&c.body)
	}
	s.calls = append(s.calls, c)

	if s.failOn != "" && strings.HasSuffix(r.URL.Path, s.failOn) {
		http.Error(w, `{"error":{"code":500,"message":"boom"}}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/spreadsheets/sheet-1") {
		ss := gsheet.Spreadsheet{}
		for _, title := range s.existing {
			ss.Sheets = append(ss.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: title}})
		}
		_ = json.NewEncoder(w).Encode(ss)
		return
	}
	_, _ = w.Write([]byte(`{}`))
}

func (s *stubSheets) find(suffix string) (call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if strings.HasSuffix(c.path, suffix) {
			return c, true
		}
	}
	return call{}, false
}

func newTestClient(t *testing.T, stub *stubSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(svc, "sheet-1", "Records", core.Civil())
}

func sampleRecords() []core.WasteRecord {
	at := time.Date(2024, 3, 5, 9, 30, 0, 0, core.Civil())
	return []core.WasteRecord{
		{ID: 1, BatchID: "b1", AreaLabel: "Area Kantor", Area: core.AreaOffice, ItemLabel: "Kertas", Status: core.StatusInorganicSorted, WeightKg: decimal.RequireFromString("2.5"), PetugasName: "Sari", RecordedAt: at, UploadedAt: at},
		{ID: 2, BatchID: "b1", AreaLabel: "Area Makan", Area: core.AreaDining, ItemLabel: "Sisa Makanan", Status: core.StatusOrganicSorted, WeightKg: decimal.RequireFromString("4"), RecordedAt: at, UploadedAt: at},
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-1")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestClient_AppendRecords_CreatesSheetWithHeader(t *testing.T) {
	stub := &stubSheets{}
	c := newTestClient(t, stub)

	n, err := c.AppendRecords(context.Background(), sampleRecords())
	if err != nil {
		t.Fatalf("AppendRecords() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("AppendRecords() = %d, want 2", n)
	}
	if _, ok := stub.find(":batchUpdate"); !ok {
		t.Fatal("expected AddSheet batch update for missing sheet")
	}
	appended, ok := stub.find(":append")
	if !ok {
		t.Fatal("expected values append call")
	}
	if len(appended.body.Values) != 3 {
		t.Fatalf("appended %d rows, want header plus 2", len(appended.body.Values))
	}
	if appended.body.Values[0][0] != "ID" {
		t.Errorf("first row should be header, got %v", appended.body.Values[0])
	}
	if got := appended.body.Values[1][6]; got != "2.50" {
		t.Errorf("weight cell = %v, want 2.50", got)
	}
	if got := appended.body.Values[1][2]; got != "2024-03-05 09:30" {
		t.Errorf("time cell = %v, want civil time", got)
	}
}

func TestClient_AppendRecords_ExistingSheet(t *testing.T) {
	stub := &stubSheets{existing: []string{"Records"}}
	c := newTestClient(t, stub)

	if _, err := c.AppendRecords(context.Background(), sampleRecords()[:1]); err != nil {
		t.Fatalf("AppendRecords() error = %v", err)
	}
	if _, ok := stub.find(":batchUpdate"); ok {
		t.Error("existing sheet should not be re-created")
	}
	appended, _ := stub.find(":append")
	if len(appended.body.Values) != 1 {
		t.Errorf("appended %d rows, want 1", len(appended.body.Values))
	}
}

func TestClient_AppendRecords_Empty(t *testing.T) {
	stub := &stubSheets{}
	c := newTestClient(t, stub)
	if n, err := c.AppendRecords(context.Background(), nil); err != nil || n != 0 {
		t.Fatalf("AppendRecords(nil) = %d, %v", n, err)
	}
	if len(stub.calls) != 0 {
		t.Errorf("expected no API calls, got %d", len(stub.calls))
	}
}

func TestClient_AppendRecords_Failure(t *testing.T) {
	stub := &stubSheets{existing: []string{"Records"}, failOn: ":append"}
	c := newTestClient(t, stub)
	if _, err := c.AppendRecords(context.Background(), sampleRecords()); err == nil {
		t.Fatal("expected append error")
	}
}

func TestClient_PublishTable(t *testing.T) {
	stub := &stubSheets{}
	c := newTestClient(t, stub)

	now := time.Date(2024, 3, 17, 10, 0, 0, 0, core.Civil())
	period, err := report.ResolveRange(report.RangeQuery{Kind: report.RangeMonth, Year: 2024, Month: 3}, now, core.Civil())
	if err != nil {
		t.Fatalf("ResolveRange: %v", err)
	}
	schema := report.DefaultSchema()
	table := report.NewTable(report.BuildGrid(schema, period, sampleRecords()))

	ref, err := c.PublishTable(context.Background(), table)
	if err != nil {
		t.Fatalf("PublishTable() error = %v", err)
	}
	if !strings.HasPrefix(ref, "'Laporan 3-2024'!A1:") {
		t.Errorf("ref = %q", ref)
	}
	if _, ok := stub.find(":clear"); !ok {
		t.Error("expected sheet to be cleared before writing")
	}

	var update call
	for _, cl := range stub.calls {
		if cl.method == http.MethodPut {
			update = cl
		}
	}
	if len(update.body.Values) != 5+31+3 {
		t.Fatalf("wrote %d rows, want %d", len(update.body.Values), 5+31+3)
	}
	if update.body.Values[0][0] != table.Title() {
		t.Errorf("title = %v", update.body.Values[0][0])
	}
}

func TestColumnName(t *testing.T) {
	tests := map[int]string{1: "A", 26: "Z", 27: "AA", 56: "BD", 0: "A"}
	for in, want := range tests {
		if got := columnName(in); got != want {
			t.Errorf("columnName(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("Laporan O'Hara"); got != "'Laporan O''Hara'" {
		t.Errorf("quoteSheet() = %q", got)
	}
}
