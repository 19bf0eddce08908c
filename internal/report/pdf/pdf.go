// Package pdf renders report tables as a landscape document, one page per
// area.
package pdf

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"green/internal/report"
)

const (
	margin     = 10.0
	rowHeight  = 4.4
	headHeight = 7.0
	font       = "Helvetica"
)

// Renderer is the paginated document emitter.
type Renderer struct{}

func (Renderer) ContentType() string { return report.ContentTypeDocument }

func (r Renderer) Render(w io.Writer, t *report.Table) error {
	doc := r.build(t)
	if err := doc.Output(w); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func (Renderer) build(t *report.Table) *fpdf.Fpdf {
	doc := fpdf.New("L", "mm", "A4", "")
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(false, margin)
	doc.SetTitle(t.Title(), false)

	for ai, area := range t.Schema.Areas {
		page(doc, t.ForArea(ai), area)
	}
	return doc
}

func page(doc *fpdf.Fpdf, t *report.Table, area report.AreaSpec) {
	pal := t.Schema.Palette
	doc.AddPage()
	pageW, _ := doc.GetPageSize()
	usable := pageW - 2*margin

	doc.SetFont(font, "B", 13)
	doc.CellFormat(usable, 7, "REKAMAN TIMBULAN SAMPAH - "+strings.ToUpper(area.Label), "", 1, "C", false, 0, "")
	doc.SetFont(font, "", 9)
	doc.CellFormat(usable, 5, t.PeriodCaption(), "", 1, "C", false, 0, "")
	doc.Ln(2)

	lead := 12.0
	leadHeader := "Tgl"
	if t.Period.Granularity == report.RowMonth {
		lead = 22
		leadHeader = "Bulan"
	}
	colW := (usable - lead) / float64(len(t.Columns))

	doc.SetFont(font, "B", 6.5)
	fill(doc, area.Color)
	doc.SetTextColor(0, 0, 0)
	doc.CellFormat(lead, headHeight, leadHeader, "1", 0, "C", true, 0, "")
	for _, col := range t.Columns {
		tone(doc, pal, col.Highlight, true, area.Color)
		doc.CellFormat(colW, headHeight, col.Short, "1", 0, "C", true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont(font, "", 7)
	for _, row := range t.Rows {
		doc.SetTextColor(0, 0, 0)
		doc.SetFillColor(255, 255, 255)
		doc.CellFormat(lead, rowHeight, row.Label, "1", 0, "C", false, 0, "")
		for ci, v := range row.Values {
			h := t.Columns[ci].Highlight
			tone(doc, pal, h, false, "")
			doc.CellFormat(colW, rowHeight, report.FormatCell(v), "1", 0, "C", h != report.HighlightNone, 0, "")
		}
		doc.Ln(-1)
	}

	labels := [3]string{"Total (kg)", "Total (ton)", "Rata-rata"}
	series := [3][]decimal.Decimal{t.TotalKg, t.TotalTon, t.Average}
	formats := [3]func(decimal.Decimal) string{report.FormatKg, report.FormatTon, report.FormatAverage}
	doc.SetFont(font, "B", 7)
	for i := range labels {
		fill(doc, pal.Neutral)
		doc.SetTextColor(0, 0, 0)
		doc.CellFormat(lead, rowHeight, labels[i], "1", 0, "C", true, 0, "")
		for ci, v := range series[i] {
			tone(doc, pal, t.Columns[ci].Highlight, true, pal.Neutral)
			doc.CellFormat(colW, rowHeight, formats[i](v), "1", 0, "C", true, 0, "")
		}
		doc.Ln(-1)
	}
}

// tone sets fill and text colour for a cell. Header cells use the strong
// palette colours; body cells the pale ones. base is used for plain columns.
func tone(doc *fpdf.Fpdf, pal report.Palette, h report.Highlight, header bool, base string) {
	doc.SetTextColor(0, 0, 0)
	switch h {
	case report.HighlightManaged:
		if header {
			fill(doc, pal.Managed.Header)
		} else {
			fill(doc, pal.Managed.Cell)
		}
	case report.HighlightResidual:
		if header {
			fill(doc, pal.Residual.Header)
			r, g, b := argb(pal.ResidualText)
			doc.SetTextColor(r, g, b)
		} else {
			fill(doc, pal.Residual.Cell)
		}
	default:
		if base != "" {
			fill(doc, base)
		}
	}
}

func fill(doc *fpdf.Fpdf, color string) {
	r, g, b := argb(color)
	doc.SetFillColor(r, g, b)
}

// argb splits an ARGB or RGB hex string; bad input yields white.
func argb(s string) (r, g, b int) {
	if len(s) == 8 {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		return 255, 255, 255
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
