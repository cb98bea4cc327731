package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("ParseLevel(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentIntake, Output: &buf})
	l.Info("patient registered", FieldPatientID, "pat_1")
	l.WithComponent(ComponentReport).Debug("built")

	out := buf.String()
	if !strings.Contains(out, "component=intake") || !strings.Contains(out, "patient_id=pat_1") {
		t.Fatalf("missing fields: %s", out)
	}
	if !strings.Contains(out, "component=report") {
		t.Fatalf("component override missing: %s", out)
	}
}

func TestMiddlewareAddsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentHTTP, Output: &buf})

	var seenID string
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestID(r.Context())
		FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/records?q=x", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seenID != "req-42" || rec.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("request id not propagated: %q / %q", seenID, rec.Header().Get(RequestIDHeader))
	}
	out := buf.String()
	if !strings.Contains(out, "request_id=req-42") || !strings.Contains(out, "status_code=404") || !strings.Contains(out, "level=WARN") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestMiddlewareGeneratesRequestID(t *testing.T) {
	l := New(Config{Output: &bytes.Buffer{}})
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rec.Header().Get(RequestIDHeader)) != 36 {
		t.Fatalf("expected uuid request id, got %q", rec.Header().Get(RequestIDHeader))
	}
}

func TestFromContextFallback(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" || l.Logger == nil {
		t.Fatalf("unexpected fallback logger %+v", l)
	}
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().WithSelection("doc_1", "", "2024-03-31").WithError(errors.New("boom")).WithError(nil)
	if f[FieldDoctorID] != "doc_1" || f[FieldRangeEnd] != "2024-03-31" || f[FieldError] != "boom" {
		t.Fatalf("fields = %v", f)
	}
	if _, ok := f[FieldRangeStart]; ok {
		t.Fatalf("empty start should be omitted")
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Fatalf("ToSlice length mismatch")
	}
}
