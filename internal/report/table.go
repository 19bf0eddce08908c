package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type ColumnKind int

const (
	ColItem ColumnKind = iota
	ColOrganicTotal
	ColInorganicTotal
	ColManagedTotal
	ColResidualTotal
	ColGrandManaged
	ColGrandUnmanaged
)

// Highlight tells renderers which palette tone a column carries.
type Highlight int

const (
	HighlightNone Highlight = iota
	HighlightManaged
	HighlightResidual
)

// Column is one numeric column of the cross-tab. Area is -1 for the two
// grand total columns; Category is -1 for anything but item columns.
type Column struct {
	Kind      ColumnKind
	Area      int
	Category  int
	Group     string
	Label     string
	Short     string
	Highlight Highlight
}

type TableRow struct {
	Label  string
	Values []decimal.Decimal
}

// Table is the logical layout handed to renderers: stable columns in catalog
// order, one row per period row, and three footer rows.
type Table struct {
	Schema   Schema
	Period   Period
	Columns  []Column
	Rows     []TableRow
	TotalKg  []decimal.Decimal
	TotalTon []decimal.Decimal
	Average  []decimal.Decimal

	areaSpans [][2]int
}

var thousand = decimal.NewFromInt(1000)

// NewTable lays g out as a cross-tab: per area the organic items, organic
// subtotal, inorganic items, inorganic subtotal, managed total, residual
// items and residual total, then the grand managed and unmanaged columns.
func NewTable(g *Grid) *Table {
	t := &Table{Schema: g.Schema, Period: g.Period}
	s := g.Schema
	for ai := range s.Areas {
		first := len(t.Columns)
		for _, ci := range s.CategoriesOf(ClassOrganic) {
			t.Columns = append(t.Columns, itemColumn(s, ai, ci))
		}
		t.Columns = append(t.Columns, Column{Kind: ColOrganicTotal, Area: ai, Category: -1, Group: "Total Organik", Label: "(Kg)", Short: "Tot Org"})
		for _, ci := range s.CategoriesOf(ClassInorganic) {
			t.Columns = append(t.Columns, itemColumn(s, ai, ci))
		}
		t.Columns = append(t.Columns,
			Column{Kind: ColInorganicTotal, Area: ai, Category: -1, Group: "Total Anorganik", Label: "(Kg)", Short: "Tot Anorg"},
			Column{Kind: ColManagedTotal, Area: ai, Category: -1, Group: "Total Terkelola", Label: "(Kg)", Short: "TERKELOLA", Highlight: HighlightManaged},
		)
		for _, ci := range s.CategoriesOf(ClassResidual) {
			t.Columns = append(t.Columns, itemColumn(s, ai, ci))
		}
		t.Columns = append(t.Columns, Column{Kind: ColResidualTotal, Area: ai, Category: -1, Group: "Total Tidak Terkelola", Label: "(Kg)", Short: "RESIDU", Highlight: HighlightResidual})
		t.areaSpans = append(t.areaSpans, [2]int{first, len(t.Columns)})
	}
	t.Columns = append(t.Columns,
		Column{Kind: ColGrandManaged, Area: -1, Category: -1, Group: "TOTAL SAMPAH TERKELOLA SETIAP AREA", Short: "TERKELOLA", Highlight: HighlightManaged},
		Column{Kind: ColGrandUnmanaged, Area: -1, Category: -1, Group: "TOTAL SAMPAH TIDAK TERKELOLA SETIAP AREA", Short: "RESIDU", Highlight: HighlightResidual},
	)

	t.Rows = make([]TableRow, len(g.Rows))
	t.TotalKg = zeros(len(t.Columns))
	for ri, gr := range g.Rows {
		values := make([]decimal.Decimal, len(t.Columns))
		for ci, col := range t.Columns {
			values[ci] = cellValue(gr, col)
			t.TotalKg[ci] = t.TotalKg[ci].Add(values[ci])
		}
		t.Rows[ri] = TableRow{Label: gr.Period.Label, Values: values}
	}

	days := decimal.NewFromInt(int64(g.Period.Days()))
	t.TotalTon = make([]decimal.Decimal, len(t.Columns))
	t.Average = make([]decimal.Decimal, len(t.Columns))
	for ci, v := range t.TotalKg {
		t.TotalTon[ci] = v.Div(thousand)
		if days.IsZero() {
			t.Average[ci] = decimal.Zero
			continue
		}
		t.Average[ci] = v.Div(days)
	}
	return t
}

func itemColumn(s Schema, area, cat int) Column {
	c := s.Categories[cat]
	group := "Organik"
	switch c.Class {
	case ClassInorganic:
		group = "Anorganik"
	case ClassResidual:
		group = "Sampah Tidak Terkelola"
	}
	return Column{Kind: ColItem, Area: area, Category: cat, Group: group, Label: c.Name, Short: c.Name}
}

func cellValue(r GridRow, col Column) decimal.Decimal {
	switch col.Kind {
	case ColGrandManaged:
		return r.GrandManaged
	case ColGrandUnmanaged:
		return r.GrandUnmanaged
	}
	c := r.Areas[col.Area]
	switch col.Kind {
	case ColItem:
		return c.Items[col.Category]
	case ColOrganicTotal:
		return c.Organic
	case ColInorganicTotal:
		return c.Inorganic
	case ColManagedTotal:
		return c.Managed
	case ColResidualTotal:
		return c.Residual
	}
	return decimal.Zero
}

// AreaSpan returns the half-open column range [first, last) of area i.
func (t *Table) AreaSpan(i int) (first, last int) {
	span := t.areaSpans[i]
	return span[0], span[1]
}

// ForArea restricts t to the columns of one area, keeping rows and footers.
func (t *Table) ForArea(i int) *Table {
	first, last := t.AreaSpan(i)
	sub := &Table{
		Schema:   t.Schema,
		Period:   t.Period,
		Columns:  append([]Column(nil), t.Columns[first:last]...),
		TotalKg:  append([]decimal.Decimal(nil), t.TotalKg[first:last]...),
		TotalTon: append([]decimal.Decimal(nil), t.TotalTon[first:last]...),
		Average:  append([]decimal.Decimal(nil), t.Average[first:last]...),
		Rows:     make([]TableRow, len(t.Rows)),
	}
	for ri, r := range t.Rows {
		sub.Rows[ri] = TableRow{Label: r.Label, Values: append([]decimal.Decimal(nil), r.Values[first:last]...)}
	}
	sub.areaSpans = [][2]int{{0, last - first}}
	return sub
}

// Title is the report heading, e.g. "REKAMAN TIMBULAN SAMPAH - BULAN 3/2024".
func (t *Table) Title() string {
	switch t.Period.Kind {
	case RangeYear:
		return fmt.Sprintf("REKAMAN TIMBULAN SAMPAH - TAHUN %d", t.Period.Year)
	case RangeMonth:
		return fmt.Sprintf("REKAMAN TIMBULAN SAMPAH - BULAN %d/%d", int(t.Period.Month), t.Period.Year)
	}
	return "REKAMAN TIMBULAN SAMPAH - " + strings.ToUpper(t.Period.Label())
}

// RowHeader names the period column.
func (t *Table) RowHeader() string {
	if t.Period.Granularity == RowMonth {
		return "Bulan"
	}
	return "Tanggal"
}

// FooterLabels returns the labels of the total kg, total ton and average rows.
func (t *Table) FooterLabels() [3]string {
	switch t.Period.Kind {
	case RangeYear:
		return [3]string{"Total (kg/thn)", "Total (ton/thn)", "Rata-rata (kg/hari)"}
	case RangeMonth:
		return [3]string{"Total (kg/bln)", "Total (ton/bln)", "Rata-rata (kg/hari)"}
	}
	return [3]string{"Total (kg)", "Total (ton)", "Rata-rata (kg/hari)"}
}

// SheetName is the worksheet name used by spreadsheet outputs.
func (t *Table) SheetName() string {
	switch t.Period.Kind {
	case RangeYear:
		return fmt.Sprintf("Laporan Tahunan %d", t.Period.Year)
	case RangeMonth:
		return fmt.Sprintf("Laporan %d-%d", int(t.Period.Month), t.Period.Year)
	case RangeWeek:
		return fmt.Sprintf("Laporan Minggu %d %d-%d", t.Period.Week, int(t.Period.Month), t.Period.Year)
	}
	return "Laporan " + t.Period.Start.Format("2-1-2006")
}

// SpreadsheetName is the download file name for the spreadsheet export.
func (t *Table) SpreadsheetName() string {
	switch t.Period.Kind {
	case RangeYear:
		return fmt.Sprintf("Laporan_Sampah_Tahunan_%d.xlsx", t.Period.Year)
	case RangeMonth:
		return fmt.Sprintf("Laporan_Sampah_Bulan_%d-%d.xlsx", int(t.Period.Month), t.Period.Year)
	}
	return "Laporan_Sampah_" + strings.ReplaceAll(t.SheetName()[len("Laporan "):], " ", "_") + ".xlsx"
}

// DocumentName is the download file name for the paginated export.
func (t *Table) DocumentName() string {
	if t.Period.Kind == RangeYear {
		return fmt.Sprintf("Laporan_Limbah_%d.pdf", t.Period.Year)
	}
	return fmt.Sprintf("Laporan_Limbah_%d-%d.pdf", int(t.Period.Month), t.Period.Year)
}

// PeriodCaption is the document subtitle, e.g. "Periode: 3/2024".
func (t *Table) PeriodCaption() string {
	if t.Period.Kind == RangeYear {
		return fmt.Sprintf("Tahun %d", t.Period.Year)
	}
	return "Periode: " + t.Period.Label()
}
