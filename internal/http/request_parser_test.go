package http

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"green/internal/report"
)

func TestParseRangeQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		want    report.RangeQuery
		wantErr bool
	}{
		{
			name:  "empty query selects today",
			query: url.Values{},
			want:  report.RangeQuery{Kind: report.RangeDay},
		},
		{
			name:  "monthly spelling",
			query: url.Values{"range": {"monthly"}, "year": {"2024"}, "month": {" 3 "}},
			want:  report.RangeQuery{Kind: report.RangeMonth, Year: 2024, Month: 3},
		},
		{
			name:  "week",
			query: url.Values{"range": {"week"}, "week": {"2"}},
			want:  report.RangeQuery{Kind: report.RangeWeek, Week: 2},
		},
		{
			name:  "explicit date",
			query: url.Values{"date": {"2024-03-05"}},
			want:  report.RangeQuery{Kind: report.RangeDay, Date: "2024-03-05"},
		},
		{
			name:    "unknown kind",
			query:   url.Values{"range": {"hourly"}},
			wantErr: true,
		},
		{
			name:    "non-numeric year",
			query:   url.Values{"range": {"year"}, "year": {"MMXXIV"}},
			wantErr: true,
		},
		{
			name:    "explicit zero month",
			query:   url.Values{"range": {"month"}, "year": {"2024"}, "month": {"0"}},
			wantErr: true,
		},
		{
			name:    "explicit zero week",
			query:   url.Values{"range": {"week"}, "week": {"00"}},
			wantErr: true,
		},
		{
			name:    "explicit zero year",
			query:   url.Values{"range": {"year"}, "year": {"0"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRangeQuery(tt.query)
			if tt.wantErr {
				if !errors.Is(err, report.ErrInvalidRange) {
					t.Fatalf("error = %v, want ErrInvalidRange", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRangeQuery() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseRangeQuery() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseMonthParams(t *testing.T) {
	p, err := ParseMonthParams(url.Values{"year": {"2023"}})
	if err != nil || p.Year != 2023 || p.Month != 0 {
		t.Errorf("ParseMonthParams() = %+v, %v", p, err)
	}

	var rangeErr *report.RangeError
	if _, err := ParseMonthParams(url.Values{"month": {"maret"}}); !errors.As(err, &rangeErr) || rangeErr.Field != "month" {
		t.Errorf("error = %v, want RangeError on month", err)
	}
	if _, err := ParseMonthParams(url.Values{"year": {"2024"}, "month": {"0"}}); !errors.As(err, &rangeErr) || rangeErr.Field != "month" {
		t.Errorf("error = %v, want RangeError on zero month", err)
	}
}

func TestParseRecordID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{" 7 ", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRecordID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRecordID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRecordID(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestUploadFiles(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range []string{"senin.csv", "selasa.csv"} {
		fw, _ := mw.CreateFormFile(uploadField, name)
		_, _ = fw.Write([]byte("content of " + name))
	}
	fw, _ := mw.CreateFormFile("other", "ignored.csv")
	_, _ = fw.Write([]byte("x"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}

	files := uploadFiles(req.MultipartForm)
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Open(%s): %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		_ = rc.Close()
		if string(data) != "content of "+f.Name {
			t.Errorf("%s content = %q", f.Name, data)
		}
	}

	if uploadFiles(nil) != nil {
		t.Error("nil form should yield no files")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  2024-03-05\x00\x07 "); got != "2024-03-05" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
