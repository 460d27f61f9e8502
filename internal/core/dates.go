package core

import "time"

// DateOnly strips the time-of-day from t, keeping year, month and day
// at midnight UTC. All engine dates are day-granular.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddMonths advances t by the given number of calendar months,
// preserving day-of-month semantics: a day that does not exist in the
// target month rolls back to its last day (Jan 31 + 1 month = Feb 28/29).
// time.AddDate would normalize forward into the next month instead.
func AddMonths(t time.Time, months int) time.Time {
	t = DateOnly(t)
	year, month, day := t.Date()
	m := int(month) + months
	target := time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	if last := daysInMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from one date to
// another. Negative if to precedes from.
func DaysBetween(from, to time.Time) int {
	return int(DateOnly(to).Sub(DateOnly(from)).Hours() / 24)
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
