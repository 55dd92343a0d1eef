package helpers

import (
	"time"
)

// Midnight returns 00:00 of the calendar day of t in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// CalendarDay returns 00:00 in loc of the date t carries, without converting
// t to loc first. DATE columns come back as midnight UTC and keep their day.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// MinimalExecutionDate is the first day a new collection may be executed:
// eight days from now, moved to the next Monday when that is a weekend day.
func MinimalExecutionDate(now time.Time, loc *time.Location) time.Time {
	d := Midnight(now.Add(8*24*time.Hour), loc)

	switch d.Weekday() {
	case time.Saturday:
		d = d.AddDate(0, 0, 2)
	case time.Sunday:
		d = d.AddDate(0, 0, 1)
	}

	return d
}
