package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"hcms/internal/core"
	"hcms/internal/report"
)

func sampleExport(t *testing.T) report.DoctorExport {
	t.Helper()
	rng, err := core.NewDayRange("2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	at := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	return report.DoctorExport{
		Doctor:  core.Doctor{ID: "doc_1", Name: "Dr. A. Khan"},
		Range:   rng,
		Metrics: report.DoctorMetrics{Patients: 1, Services: 1, Collected: 560, DoctorShare: 280, HospitalShare: 280},
		Services: report.ChargeTable{
			Rows:  []report.ChargeRow{{ID: "s1", Date: at, Item: "Nebulization", Patient: "Ramesh", Total: 200, DoctorShare: 100, HospitalShare: 100}},
			Count: 1, Total: 200, DoctorShare: 100, HospitalShare: 100,
		},
		Labs: report.ChargeTable{Rows: []report.ChargeRow{}},
	}
}

func TestNewFromEnvRequiresSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	if _, err := NewFromEnv(context.Background()); err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Fatalf("expected missing spreadsheet id error, got %v", err)
	}
}

func TestNewFromEnvRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-123")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := NewFromEnv(context.Background()); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestCredentialsFromFile(t *testing.T) {
	path := t.TempDir() + "/sa.json"
	if err := os.WriteFile(path, []byte(`{"type":"service_account"}`), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	b, err := credentialsFromEnv(context.Background())
	if err != nil || !strings.Contains(string(b), "service_account") {
		t.Fatalf("got %q, %v", b, err)
	}

	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", path+".missing")
	if _, err := credentialsFromEnv(context.Background()); err == nil {
		t.Fatalf("expected read error for missing file")
	}
}

func TestSheetTitle(t *testing.T) {
	exp := sampleExport(t)
	if got := SheetTitle(exp); got != "Dr._A._Khan_2024-03-01_to_2024-03-31" {
		t.Fatalf("title = %q", got)
	}
	exp.Doctor.Name = "Dr. O'Brien [ENT]"
	exp.Range = core.DayRange{}
	if got := SheetTitle(exp); got != "Dr._O_Brien__ENT__all_to_all" {
		t.Fatalf("sanitised title = %q", got)
	}
	exp.Doctor.Name = strings.Repeat("x", 200)
	if got := []rune(SheetTitle(exp)); len(got) != maxTitleLen {
		t.Fatalf("title length = %d", len(got))
	}
}

func TestExportValuesLayout(t *testing.T) {
	values := ExportValues(sampleExport(t))
	if values[0][0] != "Doctor Report: Dr. A. Khan" {
		t.Fatalf("heading = %v", values[0])
	}
	if values[3][0] != "Metric" || values[4][0] != "Patients Handled" {
		t.Fatalf("summary block = %v", values[3:5])
	}
	// heading(3) + summary(7) + blank + label + services(3) + blank + label + labs(2)
	if len(values) != 19 {
		t.Fatalf("len(values) = %d", len(values))
	}
	if values[len(values)-1][0] != "Total" {
		t.Fatalf("last row = %v", values[len(values)-1])
	}
}

type fakeSheets struct {
	mu       sync.Mutex
	titles   []string
	added    []string
	cleared  int
	written  [][]any
	writeURL string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.added = append(f.added, rq.AddSheet.Properties.Title)
				f.titles = append(f.titles, rq.AddSheet.Properties.Title)
			}
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-123"}`))
	case strings.HasSuffix(path, ":clear"):
		f.cleared++
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-123"}`))
	case strings.Contains(path, "/values/") && r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.written = vr.Values
		f.writeURL = path
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-123"}`))
	case r.Method == http.MethodGet:
		ss := gsheet.Spreadsheet{SpreadsheetId: "sheet-123"}
		for _, title := range f.titles {
			ss.Sheets = append(ss.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: title}})
		}
		_ = json.NewEncoder(w).Encode(ss)
	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func newFakeClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return New(svc, "sheet-123")
}

func TestPublishDoctorExport(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Sheet1"}}
	c := newFakeClient(t, fake)
	exp := sampleExport(t)

	ref, err := c.PublishDoctorExport(context.Background(), exp)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ref != "'Dr._A._Khan_2024-03-01_to_2024-03-31'!A1:E19" {
		t.Fatalf("ref = %q", ref)
	}
	if len(fake.added) != 1 || fake.cleared != 1 || len(fake.written) != 19 {
		t.Fatalf("added=%v cleared=%d written=%d", fake.added, fake.cleared, len(fake.written))
	}
	if fake.written[0][0] != "Doctor Report: Dr. A. Khan" {
		t.Fatalf("first row = %v", fake.written[0])
	}

	// a second publish reuses the tab
	if _, err := c.PublishDoctorExport(context.Background(), exp); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if len(fake.added) != 1 || fake.cleared != 2 {
		t.Fatalf("expected tab reuse, added=%v cleared=%d", fake.added, fake.cleared)
	}
}

func TestPublishWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "x"}
	if _, err := c.PublishDoctorExport(context.Background(), sampleExport(t)); err == nil {
		t.Fatalf("expected error without service")
	}
}
