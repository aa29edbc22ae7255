// Package canon holds the stateless helpers that turn canonical records into the
// archive row format: dates, timezones, symbol names, price scaling, CSV rows and
// single-entry archives.
package canon

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lean-data/internal/model"
)

const (
	dateLayout     = "20060102"
	wallTimeLayout = "20060102 15:04"
)

// FormatDate renders t as YYYYMMDD on its own wall clock.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDate parses YYYYMMDD as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// MsSinceMidnight returns milliseconds elapsed on t's wall clock since local midnight.
func MsSinceMidnight(t time.Time) int64 {
	h, m, s := t.Clock()
	return int64(h)*3_600_000 + int64(m)*60_000 + int64(s)*1000 + int64(t.Nanosecond()/1_000_000)
}

// ConvertTZ reads the wall clock of t as a time in from and returns that instant in to.
// Use it for vendors that hand out naive local timestamps.
func ConvertTZ(t time.Time, from, to *time.Location) time.Time {
	naive := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), from)
	return naive.In(to)
}

// Midnight truncates t to the start of its calendar day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DateIn returns midnight in loc of t's calendar date as read on t's own clock.
func DateIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// TradingDays lists Monday through Friday dates in [start, end], at midnight in start's zone.
// Exchange holidays are not removed.
func TradingDays(start, end time.Time) []time.Time {
	loc := start.Location()
	d := Midnight(start, loc)
	last := Midnight(end, loc)
	var days []time.Time
	for !d.After(last) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return days
}

// UsesWallClock reports whether rows of sym at res carry a "YYYYMMDD HH:MM" time
// column instead of milliseconds since midnight. Crypto minute bars are the single
// intraday exception.
func UsesWallClock(sym model.Symbol, res model.Resolution) bool {
	if !res.IsIntraday() {
		return true
	}
	return sym.Class == model.Crypto && res == model.Minute
}

// FormatTime renders the time column for a record of sym at res.
func FormatTime(t time.Time, sym model.Symbol, res model.Resolution) string {
	lt := t.In(sym.Location())
	if UsesWallClock(sym, res) {
		return lt.Format(wallTimeLayout)
	}
	return strconv.FormatInt(MsSinceMidnight(lt), 10)
}

// ParseTime is the inverse of FormatTime. day is the archive date and is only
// consulted for millisecond columns.
func ParseTime(s string, day time.Time, sym model.Symbol, res model.Resolution) (time.Time, error) {
	loc := sym.Location()
	if strings.Contains(s, " ") {
		t, err := time.ParseInLocation(wallTimeLayout, s, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
		}
		return t, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse ms since midnight %q: %w", s, err)
	}
	if ms < 0 || ms >= 86_400_000 {
		return time.Time{}, fmt.Errorf("ms since midnight out of range: %d", ms)
	}
	if day.IsZero() {
		return time.Time{}, fmt.Errorf("ms time column %q needs the archive date", s)
	}
	mid := Midnight(day, loc)
	h := ms / 3_600_000
	m := ms % 3_600_000 / 60_000
	sec := ms % 60_000 / 1000
	milli := ms % 1000
	return time.Date(mid.Year(), mid.Month(), mid.Day(), int(h), int(m), int(sec), int(milli)*1_000_000, loc), nil
}
