package report

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"green/internal/core"
)

// ErrInvalidRange marks every range specifier rejected by ResolveRange.
var ErrInvalidRange = errors.New("invalid range specifier")

// RangeError names the offending field of a range specifier.
type RangeError struct {
	Field  string
	Value  string
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range specifier: %s=%q: %s", e.Field, e.Value, e.Reason)
}

func (e *RangeError) Unwrap() error { return ErrInvalidRange }

type RangeKind string

const (
	RangeDay   RangeKind = "day"
	RangeWeek  RangeKind = "week"
	RangeMonth RangeKind = "month"
	RangeYear  RangeKind = "year"
)

// ParseRangeKind accepts both the short and the "-ly" spellings. The empty
// string selects a day range.
func ParseRangeKind(s string) (RangeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "day", "daily":
		return RangeDay, nil
	case "week", "weekly":
		return RangeWeek, nil
	case "month", "monthly":
		return RangeMonth, nil
	case "year", "yearly":
		return RangeYear, nil
	}
	return "", &RangeError{Field: "range", Value: s, Reason: "must be day, week, month or year"}
}

// RangeQuery is a range specifier as received from a caller. Zero values
// mean "current" as of evaluation time.
type RangeQuery struct {
	Kind  RangeKind `json:"range" validate:"required,oneof=day week month year"`
	Year  int       `json:"year,omitempty" validate:"omitempty,min=1970,max=9999"`
	Month int       `json:"month,omitempty" validate:"omitempty,min=1,max=12"`
	Week  int       `json:"week,omitempty" validate:"omitempty,min=1,max=4"`
	Date  string    `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report query parameter names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field domains and reports the first failure as a RangeError.
func (q RangeQuery) Validate() error {
	err := validate.Struct(q)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &RangeError{
			Field:  fe.Field(),
			Value:  fmt.Sprint(fe.Value()),
			Reason: reasonFor(fe),
		}
	}
	return fmt.Errorf("%w: %v", ErrInvalidRange, err)
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must be a calendar date formatted " + fe.Param()
	case "required":
		return "is required"
	}
	return fe.Tag()
}

// Granularity is what one period row stands for.
type Granularity int

const (
	RowDay Granularity = iota
	RowMonth
)

// PeriodRow is one materialized grid row covering [Start, End).
type PeriodRow struct {
	Index int
	Label string
	Start time.Time
	End   time.Time
}

// Period is a resolved range: civil bounds [Start, End) and the rows that
// partition it.
type Period struct {
	Kind        RangeKind
	Year        int
	Month       time.Month
	Week        int
	Start       time.Time
	End         time.Time
	Granularity Granularity
	Rows        []PeriodRow
}

// ResolveRange turns a query into civil boundaries in loc. Missing fields
// default to the period containing now; there is no unfiltered mode.
func ResolveRange(q RangeQuery, now time.Time, loc *time.Location) (Period, error) {
	if q.Kind == "" {
		q.Kind = RangeDay
	}
	if err := q.Validate(); err != nil {
		return Period{}, err
	}
	now = now.In(loc)

	year := q.Year
	if year == 0 {
		year = now.Year()
	}
	month := time.Month(q.Month)
	if month == 0 {
		month = now.Month()
	}

	switch q.Kind {
	case RangeDay:
		day := core.StartOfDay(now, loc)
		if q.Date != "" {
			parsed, err := time.ParseInLocation(time.DateOnly, q.Date, loc)
			if err != nil {
				return Period{}, &RangeError{Field: "date", Value: q.Date, Reason: err.Error()}
			}
			day = parsed
		}
		p := Period{Kind: RangeDay, Year: day.Year(), Month: day.Month(), Granularity: RowDay}
		p.Start = day
		p.End = day.AddDate(0, 0, 1)
		p.Rows = dayRows(p.Start, p.End)
		return p, nil

	case RangeWeek:
		week := q.Week
		if week == 0 {
			week = WeekOfMonth(now.Day())
		}
		first := 1 + (week-1)*7
		last := first + 6
		if week == 4 {
			last = core.DaysIn(year, month)
		}
		p := Period{Kind: RangeWeek, Year: year, Month: month, Week: week, Granularity: RowDay}
		p.Start = time.Date(year, month, first, 0, 0, 0, 0, loc)
		p.End = time.Date(year, month, last+1, 0, 0, 0, 0, loc)
		p.Rows = dayRows(p.Start, p.End)
		return p, nil

	case RangeMonth:
		p := Period{Kind: RangeMonth, Year: year, Month: month, Granularity: RowDay}
		p.Start = time.Date(year, month, 1, 0, 0, 0, 0, loc)
		p.End = p.Start.AddDate(0, 1, 0)
		p.Rows = dayRows(p.Start, p.End)
		return p, nil

	case RangeYear:
		p := Period{Kind: RangeYear, Year: year, Granularity: RowMonth}
		p.Start = time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		p.End = p.Start.AddDate(1, 0, 0)
		p.Rows = make([]PeriodRow, 12)
		for i := range p.Rows {
			start := p.Start.AddDate(0, i, 0)
			p.Rows[i] = PeriodRow{Index: i, Label: MonthName(time.Month(i + 1)), Start: start, End: start.AddDate(0, 1, 0)}
		}
		return p, nil
	}
	return Period{}, &RangeError{Field: "range", Value: string(q.Kind), Reason: "unsupported"}
}

// WeekOfMonth maps a day of month onto the 1-7, 8-14, 15-21, 22-end split.
func WeekOfMonth(day int) int {
	w := (day-1)/7 + 1
	if w > 4 {
		w = 4
	}
	return w
}

func dayRows(start, end time.Time) []PeriodRow {
	var rows []PeriodRow
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		rows = append(rows, PeriodRow{
			Index: len(rows),
			Label: strconv.Itoa(d.Day()),
			Start: d,
			End:   d.AddDate(0, 0, 1),
		})
	}
	return rows
}

// Days is the average denominator: every civil day covered by the period,
// whether or not it holds data.
func (p Period) Days() int {
	if p.Granularity == RowMonth {
		return core.DaysInYear(p.Year)
	}
	return len(p.Rows)
}

// Contains reports whether t falls in [Start, End).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// RowIndex returns the row holding t, or -1 when t is outside the period.
func (p Period) RowIndex(t time.Time) int {
	if !p.Contains(t) || len(p.Rows) == 0 {
		return -1
	}
	local := t.In(p.Start.Location())
	if p.Granularity == RowMonth {
		return int(local.Month()) - 1
	}
	// Day rows never cross a month boundary.
	idx := local.Day() - p.Start.Day()
	if idx < 0 || idx >= len(p.Rows) {
		return -1
	}
	return idx
}

// Key identifies the period for caching and sheet naming.
func (p Period) Key() string {
	return string(p.Kind) + ":" + p.Start.Format(time.DateOnly)
}

// Label renders the period the way report titles show it.
func (p Period) Label() string {
	switch p.Kind {
	case RangeYear:
		return strconv.Itoa(p.Year)
	case RangeDay:
		return p.Start.Format("2/1/2006")
	case RangeWeek:
		return fmt.Sprintf("Minggu %d %d/%d", p.Week, int(p.Month), p.Year)
	}
	return fmt.Sprintf("%d/%d", int(p.Month), p.Year)
}

var monthNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// MonthName returns the Indonesian name of m.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}
