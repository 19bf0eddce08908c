package http

import (
	"time"

	"green/internal/core"
	"green/internal/report"
)

// periodView reports the covered days inclusively.
type periodView struct {
	Range string `json:"range"`
	Key   string `json:"key"`
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func newPeriodView(p report.Period) periodView {
	return periodView{
		Range: string(p.Kind),
		Key:   p.Key(),
		Label: p.Label(),
		Start: p.Start.Format(time.DateOnly),
		End:   p.End.AddDate(0, 0, -1).Format(time.DateOnly),
	}
}

type sliceView struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func newSummaryView(s report.Summary) []sliceView {
	out := make([]sliceView, len(s))
	for i, sl := range s {
		out[i] = sliceView{Name: sl.Name, Value: number(sl.Value)}
	}
	return out
}

type recordView struct {
	ID          int64     `json:"id"`
	AreaLabel   string    `json:"area_label"`
	Area        string    `json:"area,omitempty"`
	ItemLabel   string    `json:"item_label"`
	Status      string    `json:"status"`
	WeightKg    float64   `json:"weight_kg"`
	PetugasName string    `json:"petugas_name"`
	RecordedAt  time.Time `json:"recorded_at"`
}

func newRecordViews(recs []core.WasteRecord) []recordView {
	out := make([]recordView, len(recs))
	for i, r := range recs {
		out[i] = recordView{
			ID:          r.ID,
			AreaLabel:   r.AreaLabel,
			Area:        string(r.Area),
			ItemLabel:   r.ItemLabel,
			Status:      string(r.Status),
			WeightKg:    number(r.WeightKg),
			PetugasName: r.PetugasName,
			RecordedAt:  r.RecordedAt.UTC(),
		}
	}
	return out
}

type columnView struct {
	Area  string `json:"area,omitempty"`
	Group string `json:"group"`
	Label string `json:"label"`
}

type rowView struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

type tableView struct {
	Title     string       `json:"title"`
	Period    periodView   `json:"period"`
	RowHeader string       `json:"row_header"`
	Columns   []columnView `json:"columns"`
	Rows      []rowView    `json:"rows"`
	Footers   []rowView    `json:"footers"`
}

func newTableView(t *report.Table) tableView {
	v := tableView{
		Title:     t.Title(),
		Period:    newPeriodView(t.Period),
		RowHeader: t.RowHeader(),
		Columns:   make([]columnView, len(t.Columns)),
		Rows:      make([]rowView, len(t.Rows)),
	}
	for i, c := range t.Columns {
		v.Columns[i] = columnView{Group: c.Group, Label: c.Label}
		if c.Area >= 0 {
			v.Columns[i].Area = t.Schema.Areas[c.Area].Label
		}
	}
	for i, r := range t.Rows {
		v.Rows[i] = rowView{Label: r.Label, Values: numbers(r.Values)}
	}
	labels := t.FooterLabels()
	v.Footers = []rowView{
		{Label: labels[0], Values: numbers(t.TotalKg)},
		{Label: labels[1], Values: numbers(t.TotalTon)},
		{Label: labels[2], Values: numbers(t.Average)},
	}
	return v
}
