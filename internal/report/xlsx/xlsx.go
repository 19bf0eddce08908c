// Package xlsx renders report tables as a single-sheet workbook.
package xlsx

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"green/internal/report"
)

const (
	titleRow      = 1
	headerAreaRow = 3
	firstBodyRow  = 6
	leadCols      = 2
)

// Renderer is the spreadsheet emitter.
type Renderer struct{}

func (Renderer) ContentType() string { return report.ContentTypeSpreadsheet }

func (Renderer) Render(w io.Writer, t *report.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.SheetName()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	b := &builder{f: f, sheet: sheet, t: t, styles: map[styleKey]int{}}
	steps := []func() error{b.title, b.header, b.body, b.footer, b.widths}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type styleKey struct {
	fill    string
	font    string
	bold    bool
	size    float64
	numFmt  string
	wrap    bool
	noEdges bool
}

type builder struct {
	f      *excelize.File
	sheet  string
	t      *report.Table
	styles map[styleKey]int
	err    error
}

func (b *builder) style(k styleKey) int {
	if id, ok := b.styles[k]; ok {
		return id
	}
	s := &excelize.Style{
		Font:      &excelize.Font{Bold: k.bold, Size: k.size, Color: rgb(k.font)},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: k.wrap},
	}
	if !k.noEdges {
		for _, side := range []string{"left", "top", "right", "bottom"} {
			s.Border = append(s.Border, excelize.Border{Type: side, Color: "000000", Style: 1})
		}
	}
	if k.fill != "" {
		s.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{rgb(k.fill)}}
	}
	if k.numFmt != "" {
		nf := k.numFmt
		s.CustomNumFmt = &nf
	}
	id, err := b.f.NewStyle(s)
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create style: %w", err)
	}
	b.styles[k] = id
	return id
}

func (b *builder) set(col, row int, v any, k styleKey) {
	if b.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		b.err = err
		return
	}
	if v != nil {
		if err := b.f.SetCellValue(b.sheet, cell, v); err != nil {
			b.err = fmt.Errorf("set %s: %w", cell, err)
			return
		}
	}
	id := b.style(k)
	if b.err == nil {
		if err := b.f.SetCellStyle(b.sheet, cell, cell, id); err != nil {
			b.err = fmt.Errorf("style %s: %w", cell, err)
		}
	}
}

func (b *builder) merge(c1, r1, c2, r2 int) {
	if b.err != nil || (c1 == c2 && r1 == r2) {
		return
	}
	from, err := excelize.CoordinatesToCellName(c1, r1)
	if err != nil {
		b.err = err
		return
	}
	to, err := excelize.CoordinatesToCellName(c2, r2)
	if err != nil {
		b.err = err
		return
	}
	if err := b.f.MergeCell(b.sheet, from, to); err != nil {
		b.err = fmt.Errorf("merge %s:%s: %w", from, to, err)
	}
}

func (b *builder) lastCol() int { return leadCols + len(b.t.Columns) }

func (b *builder) title() error {
	b.set(1, titleRow, b.t.Title(), styleKey{bold: true, size: 14, noEdges: true})
	b.merge(1, titleRow, b.lastCol(), titleRow)
	return b.err
}

func (b *builder) header() error {
	pal := b.t.Schema.Palette
	head := styleKey{bold: true, size: 9, wrap: true}
	neutral := head
	neutral.fill = pal.Neutral

	b.set(1, headerAreaRow, "No", neutral)
	b.set(2, headerAreaRow, b.t.RowHeader(), neutral)
	for r := headerAreaRow + 1; r <= headerAreaRow+2; r++ {
		b.set(1, r, nil, neutral)
		b.set(2, r, nil, neutral)
	}
	b.merge(1, headerAreaRow, 1, headerAreaRow+2)
	b.merge(2, headerAreaRow, 2, headerAreaRow+2)

	for ai, area := range b.t.Schema.Areas {
		first, last := b.t.AreaSpan(ai)
		band := head
		band.fill = area.Color
		for ci := first; ci < last; ci++ {
			b.set(leadCols+1+ci, headerAreaRow, nil, band)
		}
		b.set(leadCols+1+first, headerAreaRow, strings.ToUpper(area.Label), band)
		b.merge(leadCols+1+first, headerAreaRow, leadCols+last, headerAreaRow)
	}

	groupStart := -1
	for ci, col := range b.t.Columns {
		x := leadCols + 1 + ci
		k := headerStyle(head, pal, col.Highlight)
		if col.Area < 0 {
			b.set(x, headerAreaRow, col.Group, k)
			b.set(x, headerAreaRow+1, nil, k)
			b.set(x, headerAreaRow+2, nil, k)
			b.merge(x, headerAreaRow, x, headerAreaRow+2)
			continue
		}
		b.set(x, headerAreaRow+2, col.Label, k)
		b.set(x, headerAreaRow+1, nil, k)

		// Neighbouring item columns of one class share a merged group cell.
		startsGroup := ci == 0 || !sameGroup(b.t.Columns[ci-1], col)
		if startsGroup {
			groupStart = ci
			b.set(x, headerAreaRow+1, col.Group, k)
		}
		endsGroup := ci == len(b.t.Columns)-1 || !sameGroup(col, b.t.Columns[ci+1])
		if endsGroup && groupStart >= 0 {
			b.merge(leadCols+1+groupStart, headerAreaRow+1, x, headerAreaRow+1)
		}
	}

	for r := headerAreaRow; r <= headerAreaRow+2; r++ {
		if b.err == nil {
			b.err = b.f.SetRowHeight(b.sheet, r, 30)
		}
	}
	return b.err
}

func sameGroup(a, c report.Column) bool {
	return a.Kind == report.ColItem && c.Kind == report.ColItem && a.Area == c.Area && a.Group == c.Group
}

func headerStyle(base styleKey, pal report.Palette, h report.Highlight) styleKey {
	switch h {
	case report.HighlightManaged:
		base.fill = pal.Managed.Header
	case report.HighlightResidual:
		base.fill = pal.Residual.Header
		base.font = pal.ResidualText
	}
	return base
}

func (b *builder) body() error {
	pal := b.t.Schema.Palette
	for ri, row := range b.t.Rows {
		y := firstBodyRow + ri
		plain := styleKey{size: 10}
		b.set(1, y, ri+1, plain)
		b.set(2, y, rowLabel(row.Label), plain)
		for ci, v := range row.Values {
			k := styleKey{size: 10, numFmt: "0.0"}
			switch b.t.Columns[ci].Highlight {
			case report.HighlightManaged:
				k.fill = pal.Managed.Cell
			case report.HighlightResidual:
				k.fill = pal.Residual.Cell
			}
			var value any = report.Placeholder
			if !v.IsZero() {
				value = v.InexactFloat64()
			}
			b.set(leadCols+1+ci, y, value, k)
		}
	}
	return b.err
}

// rowLabel keeps day numbers numeric, the way staff sort them in the sheet.
func rowLabel(label string) any {
	if n, err := strconv.Atoi(label); err == nil {
		return n
	}
	return label
}

func (b *builder) footer() error {
	pal := b.t.Schema.Palette
	labels := b.t.FooterLabels()
	series := [][]float64{floats(b.t.TotalKg), floats(b.t.TotalTon), floats(b.t.Average)}
	formats := []string{"0.0", "0.000", "0.00"}

	y0 := firstBodyRow + len(b.t.Rows)
	for i, label := range labels {
		y := y0 + i
		lead := styleKey{bold: true, size: 10, fill: pal.Neutral}
		b.set(1, y, label, lead)
		b.set(2, y, nil, lead)
		b.merge(1, y, 2, y)
		for ci, v := range series[i] {
			k := headerStyle(styleKey{bold: true, size: 10, numFmt: formats[i], fill: pal.Neutral}, pal, b.t.Columns[ci].Highlight)
			b.set(leadCols+1+ci, y, v, k)
		}
	}
	return b.err
}

func (b *builder) widths() error {
	lead := 8.0
	if b.t.Period.Granularity == report.RowMonth {
		lead = 12
	}
	last, err := excelize.ColumnNumberToName(b.lastCol())
	if err != nil {
		return err
	}
	if err := b.f.SetColWidth(b.sheet, "A", "A", 5); err != nil {
		return err
	}
	if err := b.f.SetColWidth(b.sheet, "B", "B", lead); err != nil {
		return err
	}
	return b.f.SetColWidth(b.sheet, "C", last, 17)
}

func floats(ds []decimal.Decimal) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = d.InexactFloat64()
	}
	return out
}

func rgb(argb string) string {
	if argb == "" {
		return ""
	}
	if len(argb) == 8 {
		argb = argb[2:]
	}
	return "#" + argb
}
