package core

import "time"

// DayKey identifies one local calendar day as "YYYY-MM-DD". Two timestamps
// map to the same key iff they fall on the same calendar date in their
// location; the key is built from local year/month/day fields, never from
// epoch division, so it stays correct across daylight-saving transitions.
//
// Every day-bucketed computation in the application must go through this
// type. A second, diverging day definition is a defect.
type DayKey string

const dayKeyLayout = "2006-01-02"

// DayKeyOf returns the calendar-day key for t in t's own location.
func DayKeyOf(t time.Time) DayKey {
	return DayKey(t.Format(dayKeyLayout))
}

// DaysAgo returns the timestamp n calendar days before from, preserving the
// wall-clock time of day.
func DaysAgo(n int, from time.Time) time.Time {
	return from.AddDate(0, 0, -n)
}

// AddDays shifts the key by n calendar days. An unparsable key is returned
// unchanged; keys produced by DayKeyOf always parse.
func (k DayKey) AddDays(n int) DayKey {
	t, err := time.Parse(dayKeyLayout, string(k))
	if err != nil {
		return k
	}
	return DayKey(t.AddDate(0, 0, n).Format(dayKeyLayout))
}

// Before reports whether k sorts before other. The layout is chosen so that
// lexicographic order equals chronological order.
func (k DayKey) Before(other DayKey) bool {
	return string(k) < string(other)
}

// Month returns the "YYYY-MM" prefix of the key.
func (k DayKey) Month() string {
	if len(k) < 7 {
		return string(k)
	}
	return string(k[:7])
}

// DayOrdinal is a stable integer derived from the local calendar date:
// constant for repeated calls within one day, distinct across days. Used to
// rotate the daily challenge.
func DayOrdinal(t time.Time) int {
	return t.Year()*1000 + t.YearDay()
}

// DaysInMonth returns the number of days in the given month, accounting for
// leap years.
func DaysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
