package query

import "time"

// Calendar range helpers for the relative date operators. All ranges are
// half-open [start, end) in the engine's configured location; "last
// instant of a day" is expressed as an exclusive next-day start.

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// dayRange is the calendar day containing t.
func dayRange(t time.Time) (time.Time, time.Time) {
	start := startOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// weekRange is the week containing t. Weeks start on Sunday, matching the
// platform being emulated.
func weekRange(t time.Time) (time.Time, time.Time) {
	start := startOfDay(t).AddDate(0, 0, -int(t.Weekday()))
	return start, start.AddDate(0, 0, 7)
}

// monthRange is the calendar month containing t.
func monthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// yearRange is the calendar year containing t.
func yearRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(1, 0, 0)
}
