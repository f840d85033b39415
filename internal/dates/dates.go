// Package dates defines the canonical journal-day key. All analytics bucket
// entries by DayKey so results never depend on the server's local clock.
package dates

import (
	"fmt"
	"time"
)

// DayKey counts whole days since the Unix epoch in the product's reference
// offset. Keys are comparable and orderable; adjacent calendar days differ by
// exactly 1.
type DayKey int

const dayKeyLayout = "2006-01-02"

// Normalize maps an instant to the reference-offset calendar day it falls in.
// The offset is a fixed product constant, not a named timezone, so DST never
// applies. Two instants normalize to the same key iff they share a calendar
// day in that offset.
func Normalize(t time.Time, offset time.Duration) DayKey {
	shifted := t.UTC().Add(offset)
	y, m, d := shifted.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
	return DayKey(days)
}

// FromDate builds a key directly from calendar components.
func FromDate(year int, month time.Month, day int) DayKey {
	return DayKey(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// Parse reads a YYYY-MM-DD day key.
func Parse(s string) (DayKey, error) {
	t, err := time.Parse(dayKeyLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return DayKey(t.Unix() / 86400), nil
}

func (k DayKey) String() string {
	return time.Unix(int64(k)*86400, 0).UTC().Format(dayKeyLayout)
}

// Time returns midnight of the key's day as a UTC instant. Used when binding
// the key into DATE columns and when formatting for display.
func (k DayKey) Time() time.Time {
	return time.Unix(int64(k)*86400, 0).UTC()
}

// Month returns the key's YYYY-MM bucket.
func (k DayKey) Month() string {
	return k.Time().Format("2006-01")
}

// MonthRange resolves a YYYY-MM month to its inclusive first and last day keys.
func MonthRange(month string) (DayKey, DayKey, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q; expected YYYY-MM", month)
	}
	first := FromDate(t.Year(), t.Month(), 1)
	last := FromDate(t.Year(), t.Month()+1, 1) - 1
	return first, last, nil
}
