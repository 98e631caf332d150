package types

import "time"

// Day normalizes t to UTC midnight so date arithmetic is DST-proof.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (negative when b
// precedes a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)) / (24 * time.Hour))
}

// AddDays returns date shifted by n calendar days at UTC midnight.
func AddDays(date time.Time, n int) time.Time {
	return Day(date).AddDate(0, 0, n)
}
