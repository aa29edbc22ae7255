package model

import (
	"fmt"
	"strings"
	"time"
)

// Resolution is a bar period.
type Resolution string

const (
	Tick    Resolution = "tick"
	Second  Resolution = "second"
	Minute  Resolution = "minute"
	Hour    Resolution = "hour"
	Daily   Resolution = "daily"
	Weekly  Resolution = "weekly"
	Monthly Resolution = "monthly"
)

// Resolutions is the full supported set, finest first.
var Resolutions = []Resolution{Tick, Second, Minute, Hour, Daily, Weekly, Monthly}

// ParseResolution accepts canonical names and the common short aliases.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tick":
		return Tick, nil
	case "second", "sec", "1s":
		return Second, nil
	case "minute", "min", "1m":
		return Minute, nil
	case "hour", "1h":
		return Hour, nil
	case "daily", "day", "1d":
		return Daily, nil
	case "weekly", "week", "1w":
		return Weekly, nil
	case "monthly", "month", "1mo":
		return Monthly, nil
	}
	return "", fmt.Errorf("unknown resolution %q (use: tick, second, minute, hour, daily, weekly, monthly)", s)
}

// IsIntraday reports whether archives of r are split per calendar date.
func (r Resolution) IsIntraday() bool {
	return r == Tick || r == Second || r == Minute
}

// IsDateBased reports whether bars of r are stamped with a calendar date rather than a
// clock time.
func (r Resolution) IsDateBased() bool {
	return r == Daily || r == Weekly || r == Monthly
}

// Duration is the nominal bar length. Tick is zero, monthly is approximated as 30 days.
func (r Resolution) Duration() time.Duration {
	switch r {
	case Second:
		return time.Second
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Daily:
		return 24 * time.Hour
	case Weekly:
		return 7 * 24 * time.Hour
	case Monthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Supports reports whether r is in set.
func Supports(set []Resolution, r Resolution) bool {
	for _, s := range set {
		if s == r {
			return true
		}
	}
	return false
}

// BucketStart returns the start of the bar of resolution r containing t, computed
// on the wall clock of loc.
func BucketStart(t time.Time, r Resolution, loc *time.Location) time.Time {
	lt := t.In(loc)
	midnight := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	switch r {
	case Second, Minute, Hour:
		d := r.Duration()
		return midnight.Add(lt.Sub(midnight) / d * d)
	case Daily:
		return midnight
	case Weekly:
		offset := (int(midnight.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, loc)
	}
	return lt
}
