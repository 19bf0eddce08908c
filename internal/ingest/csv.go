// Package ingest parses field staff CSV exports into waste records.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"green/internal/core"
	"green/internal/report"
)

var (
	ErrEmptyFile     = errors.New("empty file")
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidDate   = errors.New("invalid manual date")
)

// Column headers as written by the mobile form and the dashboard template.
const (
	ColArea    = "Area"
	ColItem    = "Nama Item"
	ColStatus  = "Status"
	ColWeight  = "Bobot (Kg)"
	ColPetugas = "Petugas"
	ColTime    = "Waktu Catat"
)

// recordedLayouts are the event time formats found in the Waktu Catat column.
// The mobile form writes id-ID locale strings such as "17/03/2024 10.05".
var recordedLayouts = []string{
	"02/01/2006 15.04",
	"02/01/2006, 15.04",
	"02/01/2006 15:04",
	"02/01/2006 15.04.05",
	"02/01/2006 15:04:05",
	"2/1/2006 15.04",
	time.DateTime,
	"2006-01-02 15:04",
	time.RFC3339,
}

var requiredColumns = []string{ColArea, ColItem, ColWeight}

type Options struct {
	// RecordedAt overrides the event time of every row. When zero, a
	// parseable Waktu Catat cell is used, then Now.
	RecordedAt time.Time
	Now        time.Time
	BatchID    string
	// Location interprets Waktu Catat cells. Nil means core.Civil().
	Location *time.Location
}

// Parser turns CSV bytes into records. The schema tags each record's area
// at ingestion so reports do not depend on free-text matching later.
type Parser struct {
	Schema report.Schema
}

func NewParser(schema report.Schema) *Parser {
	return &Parser{Schema: schema}
}

// Parse reads a whole file. Rows with an unparseable weight are kept with a
// zero weight. A file with a header but no data rows yields ErrEmptyFile.
func (p *Parser) Parse(r io.Reader, opts Options) ([]core.WasteRecord, error) {
	br := bufio.NewReader(r)
	comma, err := sniffDelimiter(br)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexHeader(header)
	for _, name := range requiredColumns {
		if _, ok := cols[strings.ToLower(name)]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}

	loc := opts.Location
	if loc == nil {
		loc = core.Civil()
	}

	var out []core.WasteRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(out)+2, err)
		}
		if blank(row) {
			continue
		}
		field := func(name string) string {
			i, ok := cols[strings.ToLower(name)]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		areaLabel := field(ColArea)
		at := opts.RecordedAt
		if at.IsZero() {
			at = parseRecordedAt(field(ColTime), loc, opts.Now)
		}
		out = append(out, core.WasteRecord{
			BatchID:     opts.BatchID,
			AreaLabel:   areaLabel,
			Area:        p.Schema.MatchArea(areaLabel),
			ItemLabel:   field(ColItem),
			Status:      core.ParseStatus(field(ColStatus)),
			WeightKg:    core.ParseWeight(field(ColWeight)),
			PetugasName: field(ColPetugas),
			RecordedAt:  at,
			UploadedAt:  opts.Now,
		})
	}
	if len(out) == 0 {
		return nil, ErrEmptyFile
	}
	return out, nil
}

// ParseManualDate reads a YYYY-MM-DD date as civil midnight in loc.
func ParseManualDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// parseRecordedAt reads a Waktu Catat cell, returning fallback when the cell
// is empty or in an unknown format.
func parseRecordedAt(s string, loc *time.Location, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	for _, layout := range recordedLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return fallback
}

const bom = "\ufeff"

func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, bom)))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return cols
}

// sniffDelimiter picks ';' when the header line has semicolons but no
// commas, which is what spreadsheet apps in id-ID locales export.
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	peek, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("read header: %w", err)
	}
	line := peek
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		line = peek[:i]
	}
	if bytes.IndexByte(line, ';') >= 0 && bytes.IndexByte(line, ',') < 0 {
		return ';', nil
	}
	return ',', nil
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
