package base

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lean-data/internal/canon"
	"lean-data/internal/model"
)

// Info holds the static capabilities of an adapter and implements the metadata half
// of provider.DataProvider. Adapters embed it.
type Info struct {
	Tag         string
	RPM         int
	Resolutions []model.Resolution
	Classes     []model.AssetClass
}

func (i Info) GetName() string                          { return i.Tag }
func (i Info) RateLimitRPM() int                        { return i.RPM }
func (i Info) SupportedResolutions() []model.Resolution { return i.Resolutions }
func (i Info) AssetClasses() []model.AssetClass         { return i.Classes }
func (i Info) Close() error                             { return nil }

// CheckResolution returns ErrUnsupportedResolution when r is not served.
func (i Info) CheckResolution(r model.Resolution) error {
	if !model.Supports(i.Resolutions, r) {
		return fmt.Errorf("%s: %w: %s", i.Tag, ErrUnsupportedResolution, r)
	}
	return nil
}

// CheckClass returns ErrUnsupportedAssetClass when c is not served.
func (i Info) CheckClass(c model.AssetClass) error {
	for _, x := range i.Classes {
		if x == c {
			return nil
		}
	}
	return fmt.Errorf("%s: %w: %s", i.Tag, ErrUnsupportedAssetClass, c)
}

// Symbol builds a canonical symbol with this adapter as venue.
func (i Info) Symbol(ticker string, class model.AssetClass) model.Symbol {
	return model.Symbol{Ticker: canon.NormalizeSymbol(ticker), Class: class, Venue: strings.ToLower(i.Tag)}
}

// DayRange returns [start 00:00, end+1day 00:00) in loc. Request bounds are calendar
// dates, so their Y-M-D is reused as is rather than converted.
func DayRange(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	return canon.DateIn(start, loc), canon.DateIn(end, loc).AddDate(0, 0, 1)
}

// InRange reports whether t falls in [from, to).
func InRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

// Now is the clock documents are stamped with.
var Now = time.Now

// NewDocument wraps a JSON payload as a document dated today. Payloads that are not
// valid JSON are rejected.
func NewDocument(sym model.Symbol, category, name string, payload []byte) (model.Document, error) {
	if !json.Valid(payload) {
		return model.Document{}, fmt.Errorf("%s %s: invalid JSON payload", category, name)
	}
	n := Now().UTC()
	return model.Document{
		Symbol:   sym,
		AsOf:     time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC),
		Category: category,
		Name:     name,
		Payload:  json.RawMessage(payload),
	}, nil
}

// IsEmptyPayload reports payloads that carry nothing: null, {}, [] or blank.
func IsEmptyPayload(payload []byte) bool {
	switch strings.Join(strings.Fields(string(payload)), "") {
	case "", "null", "{}", "[]":
		return true
	}
	return false
}
