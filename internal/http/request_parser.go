// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// range specifiers, export parameters, record ids and multipart uploads.

package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"

	"green/internal/report"
	"green/internal/services"
)

// uploadField is the multipart field carrying CSV files.
const uploadField = "csvFiles"

var errInvalidID = errors.New("invalid record id")

// ParseRangeQuery reads range, year, month, week and date from query
// parameters. Missing values stay zero so ResolveRange picks the current
// period; present values that are zero or non-numeric are rejected.
func ParseRangeQuery(query url.Values) (report.RangeQuery, error) {
	kind, err := report.ParseRangeKind(query.Get("range"))
	if err != nil {
		return report.RangeQuery{}, err
	}
	q := report.RangeQuery{Kind: kind, Date: sanitizeInput(query.Get("date"))}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"year", &q.Year},
		{"month", &q.Month},
		{"week", &q.Week},
	} {
		if *p.dst, err = intParam(query, p.name); err != nil {
			return report.RangeQuery{}, err
		}
	}
	return q, nil
}

// MonthParams holds parsed year/month values; zero means current.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month for the export endpoints.
func ParseMonthParams(query url.Values) (MonthParams, error) {
	year, err := intParam(query, "year")
	if err != nil {
		return MonthParams{}, err
	}
	month, err := intParam(query, "month")
	if err != nil {
		return MonthParams{}, err
	}
	return MonthParams{Year: year, Month: month}, nil
}

func intParam(query url.Values, name string) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &report.RangeError{Field: name, Value: v, Reason: "must be a number"}
	}
	// Zero is the "current period" sentinel and cannot be asked for.
	if n == 0 {
		return 0, &report.RangeError{Field: name, Value: v, Reason: "out of range"}
	}
	return n, nil
}

// ParseRecordID accepts positive decimal ids only.
func ParseRecordID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// uploadFiles lists the CSV parts of a parsed multipart form.
func uploadFiles(form *multipart.Form) []services.UploadFile {
	if form == nil {
		return nil
	}
	headers := form.File[uploadField]
	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, services.UploadFile{
			Name: sanitizeInput(fh.Filename),
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return files
}
