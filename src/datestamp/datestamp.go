/*
Package datestamp encodes the recap calendar. A recap week runs Monday 00:00 UTC
through Sunday, and is identified by a five digit YYMMW number: two-digit year,
two-digit month, and a one-based week of that month.

Weeks are assigned to months by their Monday. A Monday that falls in the last
two days of a month already belongs to week 1 of the next month, while the
first Monday of a month is week 1 or week 2 depending on whether the previous
month's last Monday rolled over into this one.
*/
package datestamp

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidDatestamp = errors.New("invalid datestamp")
)

const (
	weekDays      = 7
	weekThreshold = weekDays / 2

	// Timestamps longer than this many digits carry sub-second precision.
	secondsDigits = 10
)

// FromTimestamp converts a Unix timestamp to its datestamp. Millisecond and
// microsecond timestamps are accepted: anything past the tenth digit is
// dropped.
func FromTimestamp(ts int64) (int, error) {
	if ts < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrInvalidTimestamp, ts)
	}
	return FromTime(time.Unix(TruncateTimestamp(ts), 0)), nil
}

// TruncateTimestamp drops any digits past the tenth.
func TruncateTimestamp(ts int64) int64 {
	for ts >= 1e10 {
		ts /= 10
	}
	return ts
}

// FromTime converts a time to its datestamp. Only the UTC date matters.
func FromTime(t time.Time) int {
	monday := mondayOf(t)

	first := time.Date(monday.Year(), monday.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthWeekday := weekdayIndex(first)
	monthDays := daysIn(monday.Year(), monday.Month())

	offset := mod(monthWeekday-weekThreshold-1, weekDays) - weekThreshold
	week := (monday.Day()+offset-1)/weekDays + 1

	if monthDays-monday.Day() < weekThreshold {
		week = 1
		monday = monday.AddDate(0, 0, weekDays)
	}

	return (monday.Year()%100)*1000 + int(monday.Month())*10 + week
}

// Now is the datestamp of the current recap week.
func Now() int {
	return FromTime(time.Now())
}

func Split(ds int) (year, month, week int) {
	return ds / 1000, (ds / 10) % 100, ds % 10
}

// Year returns the full year, e.g. 2020 for 20043.
func Year(ds int) int {
	yy, _, _ := Split(ds)
	return 2000 + yy
}

func Month(ds int) time.Month {
	_, mm, _ := Split(ds)
	return time.Month(mm)
}

func Week(ds int) int {
	_, _, w := Split(ds)
	return w
}

/*
Start returns the Monday, 00:00 UTC, that begins the recap week ds. It is the
inverse of FromTime:

	FromTime(Start(ds)) == ds

Identifiers that no Monday maps to, such as week 6 of a short month, return
ErrInvalidDatestamp.
*/
func Start(ds int) (time.Time, error) {
	yy, mm, w := Split(ds)
	if ds < 0 || ds > 99999 || mm < 1 || mm > 12 || w < 1 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidDatestamp, ds)
	}

	// Week 1 may start up to a few days before the 1st, and no month has more
	// than six recap weeks.
	first := time.Date(2000+yy, time.Month(mm), 1, 0, 0, 0, 0, time.UTC)
	candidate := mondayOf(first.AddDate(0, 0, -weekDays))
	for i := 0; i < 7; i++ {
		if FromTime(candidate) == ds {
			return candidate, nil
		}
		candidate = candidate.AddDate(0, 0, weekDays)
	}

	return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidDatestamp, ds)
}

// Valid reports whether ds names a real recap week.
func Valid(ds int) bool {
	_, err := Start(ds)
	return err == nil
}

// Text is the human label for a recap week, e.g. "April 2020 / Week 3".
func Text(ds int) string {
	return fmt.Sprintf("%s %d / Week %d", Month(ds), Year(ds), Week(ds))
}

func mondayOf(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -weekdayIndex(day))
}

// Monday is 0.
func weekdayIndex(t time.Time) int {
	return mod(int(t.Weekday())-1, weekDays)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func mod(a, b int) int {
	return ((a % b) + b) % b
}
