package util

import "time"

// AddMonths returns t shifted by n calendar months. When the target month is
// shorter than t's day, the result is clamped to the target month's last day
// (Jan 31 + 1 month = Feb 28/29), unlike time.AddDate which overflows.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	target := month + time.Month(n)

	// Day 0 of the following month is the last day of the target month
	lastDay := time.Date(year, target+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}

	hour, min, sec := t.Clock()
	return time.Date(year, target, day, hour, min, sec, t.Nanosecond(), t.Location())
}

// IsAfterDay reports whether a falls on a later calendar day than b (UTC)
func IsAfterDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}
