package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_ComponentAndJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentIngest, Handler: NewHandler(&buf, slog.LevelInfo, "json")})

	NewStructuredLogger(logger).LogRecordsIngested(context.Background(), "batch-7", 2, 31)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %v (%s)", err, buf.String())
	}
	if entry[FieldBatchID] != "batch-7" {
		t.Errorf("batch_id = %v", entry[FieldBatchID])
	}
	if entry[FieldRecordCount] != float64(31) {
		t.Errorf("record_count = %v", entry[FieldRecordCount])
	}
	if entry[FieldOperation] != OpIngest {
		t.Errorf("operation = %v", entry[FieldOperation])
	}
}

func TestLogger_DebugFiltered(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentApp, Handler: NewHandler(&buf, slog.LevelInfo, "text")})
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug output should be filtered, got %q", buf.String())
	}
	logger.Warn("shown", FieldPeriod, "3/2024")
	if !strings.Contains(buf.String(), "period=3/2024") {
		t.Fatalf("missing field in %q", buf.String())
	}
}

func TestMiddleware_LoggerInContext(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Component: ComponentHTTP, Handler: NewHandler(&buf, slog.LevelInfo, "text")})

	h := Middleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("handled")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if !strings.Contains(buf.String(), "msg=handled") {
		t.Fatalf("handler did not log through the request logger: %q", buf.String())
	}
}

func TestFromContext_Default(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("FromContext() = %+v", l)
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, Handler: NewHandler(&buf, slog.LevelInfo, "json")})

	fields := NewFields()
	fields[FieldPath] = "/api/report"
	NewStructuredLogger(logger).LogError(context.Background(), "report failed", errors.New("disk full"), ComponentReport, OpAggregate, fields)
	NewStructuredLogger(logger).LogError(context.Background(), "no fields", errors.New("x"), ComponentHTTP, OpList, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	for key, want := range map[string]any{
		"level":        "ERROR",
		FieldError:     "disk full",
		FieldOperation: OpAggregate,
		FieldPath:      "/api/report",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %v", key, entry[key], want)
		}
	}
}
