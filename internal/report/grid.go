package report

import (
	"github.com/shopspring/decimal"

	"green/internal/core"
)

// Cells holds one area's accumulation for one period row.
type Cells struct {
	// Items is indexed by catalog position.
	Items     []decimal.Decimal
	Organic   decimal.Decimal
	Inorganic decimal.Decimal
	Managed   decimal.Decimal
	Residual  decimal.Decimal
}

// Sum adds up the raw category cells.
func (c Cells) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, v := range c.Items {
		total = total.Add(v)
	}
	return total
}

type GridRow struct {
	Period PeriodRow
	// Areas is indexed like Schema.Areas.
	Areas          []Cells
	GrandManaged   decimal.Decimal
	GrandUnmanaged decimal.Decimal
}

// Grid is the per-request cross-tab. It is built once and only read after.
type Grid struct {
	Schema Schema
	Period Period
	Rows   []GridRow

	// Counted records landed in a cell. Skipped records had no known area,
	// Outside records fell outside the period bounds.
	Counted       int
	Skipped       int
	SkippedWeight decimal.Decimal
	Outside       int
}

// BuildGrid accumulates records into period rows by area and category and
// derives the subtotals. Every row of the period is materialized, so empty
// days come out as all-zero cells.
func BuildGrid(schema Schema, period Period, records []core.WasteRecord) *Grid {
	g := &Grid{
		Schema:        schema,
		Period:        period,
		Rows:          make([]GridRow, len(period.Rows)),
		SkippedWeight: decimal.Zero,
	}
	for i, pr := range period.Rows {
		row := GridRow{Period: pr, Areas: make([]Cells, len(schema.Areas))}
		for a := range row.Areas {
			row.Areas[a].Items = zeros(len(schema.Categories))
		}
		g.Rows[i] = row
	}

	for _, r := range records {
		ri := period.RowIndex(r.RecordedAt)
		if ri < 0 {
			g.Outside++
			continue
		}
		ai := schema.AreaIndex(r)
		if ai < 0 {
			g.Skipped++
			g.SkippedWeight = g.SkippedWeight.Add(r.WeightKg)
			continue
		}
		ci := schema.ResolveIndex(r.ItemLabel)
		cells := &g.Rows[ri].Areas[ai]
		cells.Items[ci] = cells.Items[ci].Add(r.WeightKg)
		g.Counted++
	}

	for i := range g.Rows {
		row := &g.Rows[i]
		row.GrandManaged = decimal.Zero
		row.GrandUnmanaged = decimal.Zero
		for a := range row.Areas {
			c := &row.Areas[a]
			c.Organic = sumOf(c.Items, schema, ClassOrganic)
			c.Inorganic = sumOf(c.Items, schema, ClassInorganic)
			c.Residual = sumOf(c.Items, schema, ClassResidual)
			c.Managed = c.Organic.Add(c.Inorganic)
			row.GrandManaged = row.GrandManaged.Add(c.Managed)
			row.GrandUnmanaged = row.GrandUnmanaged.Add(c.Residual)
		}
	}
	return g
}

// Total is the overall weight that landed in the grid.
func (g *Grid) Total() decimal.Decimal {
	total := decimal.Zero
	for _, r := range g.Rows {
		total = total.Add(r.GrandManaged).Add(r.GrandUnmanaged)
	}
	return total
}

func sumOf(items []decimal.Decimal, schema Schema, class Class) decimal.Decimal {
	total := decimal.Zero
	for i, v := range items {
		if schema.Categories[i].Class == class {
			total = total.Add(v)
		}
	}
	return total
}

func zeros(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.Zero
	}
	return out
}
