package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"lean-data/internal/crawl"
	"lean-data/internal/model"
)

const (
	testSymbols = 2
	testDays    = 7
)

// Options is one run as requested on the command line.
type Options struct {
	Sources    []string
	Start      time.Time
	End        time.Time
	Resolution model.Resolution
	// Symbols replaces the symbol list of a vendor, keyed by tag.
	Symbols   map[string][]string
	Test      bool
	Documents crawl.DocumentSet
	OutputDir string
	LogLevel  string
	LogFormat string
	Resume    bool

	// All is set by Validate when "all" was requested.
	All bool
}

// ErrConfig marks errors the run cannot start with.
var ErrConfig = errors.New("configuration error")

// ExpandSources resolves "all" and comma lists into registry tags, de-duplicated
// and in registry order for "all".
func ExpandSources(in []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			tag := strings.ToLower(strings.TrimSpace(part))
			if tag == "" {
				continue
			}
			if tag == "all" {
				for _, t := range VendorTags() {
					if !seen[t] {
						seen[t] = true
						out = append(out, t)
					}
				}
				continue
			}
			if _, ok := LookupVendor(tag); !ok {
				return nil, fmt.Errorf("%w: unknown source %q. Options: all, %s", ErrConfig, tag, strings.Join(VendorTags(), ", "))
			}
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no source selected", ErrConfig)
	}
	return out, nil
}

// Validate normalizes sources and checks the date range.
func (o *Options) Validate() error {
	srcs, err := ExpandSources(o.Sources)
	if err != nil {
		return err
	}
	for _, s := range o.Sources {
		if strings.Contains(","+strings.ToLower(strings.ReplaceAll(s, " ", ""))+",", ",all,") {
			o.All = true
		}
	}
	o.Sources = srcs
	if o.Start.IsZero() || o.End.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrConfig)
	}
	if o.Start.After(o.End) {
		return fmt.Errorf("%w: start date %s is after end date %s", ErrConfig, o.Start.Format(time.DateOnly), o.End.Format(time.DateOnly))
	}
	if o.Resolution == "" {
		o.Resolution = model.Daily
	}
	return nil
}

// SingleSource reports whether exactly one source was selected. Only then does a
// failing source abort the run.
func (o Options) SingleSource() bool { return len(o.Sources) == 1 }

// TestWindow returns the date range test mode uses: the last seven days of the
// requested range.
func (o Options) TestWindow() (time.Time, time.Time) {
	start := o.End.AddDate(0, 0, -(testDays - 1))
	if start.Before(o.Start) {
		start = o.Start
	}
	return start, o.End
}

// limitSymbols truncates list in test mode.
func (o Options) limitSymbols(list []string) []string {
	if o.Test && len(list) > testSymbols {
		return list[:testSymbols]
	}
	return list
}

// DefaultDates returns yesterday (UTC) and one year before it.
func DefaultDates(now time.Time) (time.Time, time.Time) {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return end.AddDate(-1, 0, 0), end
}
