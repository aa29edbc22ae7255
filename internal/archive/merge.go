package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"lean-data/internal/canon"
	"lean-data/internal/model"
)

// mergeExisting folds the records already archived at path into s, which must be
// sorted and non-empty. Archived records inside s's time span are superseded by
// s. It returns the merged series and how many archived records were kept. A
// missing file, or one holding another kind, leaves s unchanged.
func mergeExisting(path string, s model.Series) (model.Series, int, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return s, 0, nil
	}
	inner, data, err := canon.ReadArchive(path)
	if err != nil {
		return s, 0, err
	}
	if inner != canon.InnerName(s.Symbol, s.Resolution, s.Kind) {
		return s, 0, nil
	}
	rows, err := canon.DecodeCSV(data)
	if err != nil {
		return s, 0, fmt.Errorf("archived %s: %w", path, err)
	}

	out := s
	var kept int
	switch s.Kind {
	case model.KindQuote:
		old, err := canon.DecodeQuoteBars(rows, s.Symbol, s.Resolution, time.Time{})
		if err != nil {
			return s, 0, fmt.Errorf("archived %s: %w", path, err)
		}
		out.Quotes, kept = splice(old, s.Quotes, func(b model.QuoteBar) time.Time { return b.Time })
	case model.KindOption:
		old, err := canon.DecodeOptionBars(rows, s.Symbol, s.Resolution, time.Time{})
		if err != nil {
			return s, 0, fmt.Errorf("archived %s: %w", path, err)
		}
		out.Options, kept = splice(old, s.Options, func(b model.OptionBar) time.Time { return b.Time })
	default:
		old, err := canon.DecodeTradeBars(rows, s.Symbol, s.Resolution, time.Time{})
		if err != nil {
			return s, 0, fmt.Errorf("archived %s: %w", path, err)
		}
		out.Trades, kept = splice(old, s.Trades, func(b model.TradeBar) time.Time { return b.Time })
	}
	return out, kept, nil
}

// splice places cur between the old records that fall before and after it.
func splice[T any](old, cur []T, at func(T) time.Time) ([]T, int) {
	first, last := at(cur[0]), at(cur[len(cur)-1])
	var before, after []T
	for _, b := range old {
		switch t := at(b); {
		case t.Before(first):
			before = append(before, b)
		case t.After(last):
			after = append(after, b)
		}
	}
	out := make([]T, 0, len(before)+len(cur)+len(after))
	out = append(out, before...)
	out = append(out, cur...)
	out = append(out, after...)
	return out, len(before) + len(after)
}
