package sheets

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"green/internal/core"
	"green/internal/report"
)

// Ports for outbound adapters.
type (
	// RecordMirror appends stored records to a shared spreadsheet so
	// non-technical staff can read the raw log.
	RecordMirror interface {
		AppendRecords(ctx context.Context, recs []core.WasteRecord) (written int, err error)
	}

	// ReportPublisher replaces one worksheet with a rendered report table.
	ReportPublisher interface {
		PublishTable(ctx context.Context, t *report.Table) (sheetRef string, err error)
	}

	Publisher interface {
		RecordMirror
		ReportPublisher
	}
)

// RecordHeader is the header row of the mirrored records sheet.
var RecordHeader = []string{"ID", "Batch", "Tanggal", "Area", "Nama Item", "Status", "Bobot (Kg)", "Petugas", "Diunggah"}

// RecordRow lays one record out under RecordHeader. Times render in loc.
func RecordRow(r core.WasteRecord, loc *time.Location) []any {
	return []any{
		r.ID,
		r.BatchID,
		r.RecordedAt.In(loc).Format("2006-01-02 15:04"),
		r.AreaLabel,
		r.ItemLabel,
		string(r.Status),
		r.WeightKg.StringFixed(core.WeightScale),
		r.PetugasName,
		r.UploadedAt.In(loc).Format("2006-01-02 15:04"),
	}
}

// TableValues lays a report table out as a value grid: title, a blank row,
// three header rows, the body and the three footer rows.
func TableValues(t *report.Table) [][]any {
	width := 2 + len(t.Columns)
	blank := func() []any {
		row := make([]any, width)
		for i := range row {
			row[i] = ""
		}
		return row
	}

	title := blank()
	title[0] = t.Title()

	areas, groups, labels := blank(), blank(), blank()
	areas[0], areas[1] = "No", t.RowHeader()
	for ai, spec := range t.Schema.Areas {
		first, _ := t.AreaSpan(ai)
		areas[2+first] = strings.ToUpper(spec.Label)
	}
	for ci, col := range t.Columns {
		if ci == 0 || col.Group != t.Columns[ci-1].Group || col.Area != t.Columns[ci-1].Area {
			groups[2+ci] = col.Group
		}
		labels[2+ci] = col.Label
	}

	out := [][]any{title, blank(), areas, groups, labels}
	for ri, r := range t.Rows {
		row := blank()
		row[0], row[1] = ri+1, r.Label
		for ci, v := range r.Values {
			row[2+ci] = report.FormatCell(v)
		}
		out = append(out, row)
	}

	footers := t.FooterLabels()
	for fi, vals := range [][]decimal.Decimal{t.TotalKg, t.TotalTon, t.Average} {
		row := blank()
		row[1] = footers[fi]
		for ci, v := range vals {
			switch fi {
			case 0:
				row[2+ci] = report.FormatKg(v)
			case 1:
				row[2+ci] = report.FormatTon(v)
			default:
				row[2+ci] = report.FormatAverage(v)
			}
		}
		out = append(out, row)
	}
	return out
}
