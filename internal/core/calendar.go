package core

import "time"

// CivilOffset is the fixed offset used for every calendar computation.
const CivilOffset = 7 * 60 * 60

var civil = time.FixedZone("WIB", CivilOffset)

// Civil returns the UTC+7 location reports are bucketed in.
func Civil() *time.Location { return civil }

// CivilZone builds a fixed zone for the given hour offset. Seven hours
// returns the shared WIB location.
func CivilZone(hours int) *time.Location {
	if hours == 7 {
		return civil
	}
	return time.FixedZone("", hours*60*60)
}

// DaysIn returns the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysInYear returns 366 for leap years and 365 otherwise.
func DaysInYear(year int) int {
	if DaysIn(year, time.February) == 29 {
		return 366
	}
	return 365
}

// StartOfDay truncates t to civil midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
