package report

import (
	"github.com/shopspring/decimal"

	"green/internal/core"
)

const (
	SliceManaged   = "Terkelola"
	SliceUnmanaged = "Tidak Terkelola"
)

// Slice is one pie chart entry.
type Slice struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// Summary is the two-entry managed/unmanaged breakdown.
type Summary []Slice

// Summarize splits records of the period into managed and unmanaged weight.
// Records outside the period or without a known area are left out, matching
// what the cross-tab counts.
func Summarize(schema Schema, period Period, records []core.WasteRecord) Summary {
	managed, unmanaged := decimal.Zero, decimal.Zero
	for _, r := range records {
		if !period.Contains(r.RecordedAt) || schema.AreaIndex(r) < 0 {
			continue
		}
		if schema.Managed(r) {
			managed = managed.Add(r.WeightKg)
		} else {
			unmanaged = unmanaged.Add(r.WeightKg)
		}
	}
	return Summary{
		{Name: SliceManaged, Value: managed},
		{Name: SliceUnmanaged, Value: unmanaged},
	}
}

// Total adds both slices.
func (s Summary) Total() decimal.Decimal {
	total := decimal.Zero
	for _, sl := range s {
		total = total.Add(sl.Value)
	}
	return total
}
