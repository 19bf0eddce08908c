// Package report turns flat waste records into the day-or-month by area by
// category cross-tab shared by the JSON, spreadsheet and document outputs.
package report

import (
	"strings"

	"green/internal/core"
)

// Class groups categories into the three reporting families.
type Class int

const (
	ClassOrganic Class = iota
	ClassInorganic
	ClassResidual
)

func (c Class) String() string {
	switch c {
	case ClassOrganic:
		return "Organik"
	case ClassInorganic:
		return "Anorganik"
	case ClassResidual:
		return "Residu"
	}
	return "unknown"
}

// Managed reports whether waste of this class counts as sorted.
func (c Class) Managed() bool { return c == ClassOrganic || c == ClassInorganic }

// Classification selects how the summary decides managed vs unmanaged.
type Classification int

const (
	// ByCategory classifies through the keyword-resolved category.
	ByCategory Classification = iota
	// ByStatus trusts the status typed by field staff.
	ByStatus
)

type (
	Category struct {
		Name     string
		Class    Class
		Keywords []string
	}

	AreaSpec struct {
		Area    core.Area
		Label   string
		Keyword string
		// Color is an ARGB hex string such as FFADD8E6.
		Color string
	}

	Tone struct {
		Header string
		Cell   string
	}

	Palette struct {
		Managed  Tone
		Residual Tone
		Neutral  string
		// ResidualText is the font colour used on residual header cells.
		ResidualText string
	}

	// Schema is the immutable report configuration: areas, category catalog
	// and colours. Catalog order is the only tie-break rule for labels that
	// match several categories.
	Schema struct {
		Areas          []AreaSpec
		Categories     []Category
		Fallback       int
		Palette        Palette
		Classification Classification
	}
)

// DefaultSchema returns the canonical catalog. Each call returns fresh slices.
func DefaultSchema() Schema {
	return Schema{
		Areas: []AreaSpec{
			{Area: core.AreaOffice, Label: "Area Kantor", Keyword: "kantor", Color: "FFADD8E6"},
			{Area: core.AreaParking, Label: "Area Parkir", Keyword: "parkir", Color: "FF90EE90"},
			{Area: core.AreaDining, Label: "Area Makan", Keyword: "makan", Color: "FFFFA500"},
			{Area: core.AreaWaitingRoom, Label: "Area Ruang Tunggu", Keyword: "tunggu", Color: "FFFFFF00"},
		},
		Categories: []Category{
			{Name: "Daun Kering", Class: ClassOrganic, Keywords: []string{"daun", "kering"}},
			{Name: "Sisa Makanan", Class: ClassOrganic, Keywords: []string{"makan", "sisa"}},
			{Name: "Kertas", Class: ClassInorganic, Keywords: []string{"kertas"}},
			{Name: "Kardus", Class: ClassInorganic, Keywords: []string{"kardus"}},
			{Name: "Plastik", Class: ClassInorganic, Keywords: []string{"plastik"}},
			{Name: "Duplex", Class: ClassInorganic, Keywords: []string{"duplex"}},
			{Name: "Kantong", Class: ClassInorganic, Keywords: []string{"kantong", "kresek", "semen"}},
			{Name: "Drum Vat", Class: ClassResidual, Keywords: []string{"drum", "vat"}},
			{Name: "Residu", Class: ClassResidual, Keywords: []string{"residu", "lain"}},
		},
		Fallback: 8,
		Palette: Palette{
			Managed:      Tone{Header: "FF32CD32", Cell: "FFE8F5E9"},
			Residual:     Tone{Header: "FFFF0000", Cell: "FFFFEBEE"},
			Neutral:      "FFEEEEEE",
			ResidualText: "FFFFFFFF",
		},
		Classification: ByCategory,
	}
}

// ResolveIndex returns the catalog index of the first category whose
// keywords occur in label. It never fails: unmatched labels map to the
// fallback category.
func (s Schema) ResolveIndex(label string) int {
	lower := strings.ToLower(label)
	for i, c := range s.Categories {
		for _, kw := range c.Keywords {
			if strings.Contains(lower, kw) {
				return i
			}
		}
	}
	return s.Fallback
}

// Resolve is ResolveIndex returning the category itself.
func (s Schema) Resolve(label string) Category {
	return s.Categories[s.ResolveIndex(label)]
}

// MatchArea maps a free-text area label to its tag by ordered substring
// match. It returns the empty Area when nothing matches.
func (s Schema) MatchArea(label string) core.Area {
	lower := strings.ToLower(label)
	for _, a := range s.Areas {
		if strings.Contains(lower, a.Keyword) {
			return a.Area
		}
	}
	return ""
}

// AreaIndex returns the position of the record's area in s.Areas, or -1.
// A stored tag wins over the label.
func (s Schema) AreaIndex(r core.WasteRecord) int {
	area := r.Area
	if area == "" {
		area = s.MatchArea(r.AreaLabel)
	}
	if area == "" {
		return -1
	}
	for i, a := range s.Areas {
		if a.Area == area {
			return i
		}
	}
	return -1
}

// CategoriesOf returns catalog indexes of class c in catalog order.
func (s Schema) CategoriesOf(c Class) []int {
	var out []int
	for i, cat := range s.Categories {
		if cat.Class == c {
			out = append(out, i)
		}
	}
	return out
}

// Managed classifies r according to s.Classification.
func (s Schema) Managed(r core.WasteRecord) bool {
	if s.Classification == ByStatus {
		return r.Status.Managed()
	}
	return s.Resolve(r.ItemLabel).Class.Managed()
}
