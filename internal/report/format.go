package report

import "github.com/shopspring/decimal"

// Placeholder is what zero body cells render as.
const Placeholder = "-"

// FormatCell renders a body cell with one decimal, or the placeholder for zero.
func FormatCell(v decimal.Decimal) string {
	if v.IsZero() {
		return Placeholder
	}
	return v.StringFixed(1)
}

// FormatKg renders the total kg footer.
func FormatKg(v decimal.Decimal) string { return v.StringFixed(1) }

// FormatTon renders the total ton footer.
func FormatTon(v decimal.Decimal) string { return v.StringFixed(3) }

// FormatAverage renders the average footer.
func FormatAverage(v decimal.Decimal) string { return v.StringFixed(2) }
