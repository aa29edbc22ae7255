// Package validate filters records that break the bar invariants and audits written archives.
package validate

import (
	"errors"
	"math"
	"sort"
	"time"

	"lean-data/internal/model"
)

var (
	ErrNotFinite    = errors.New("non-finite value")
	ErrLowAboveBody = errors.New("low above min(open, close)")
	ErrHighBelow    = errors.New("high below max(open, close)")
	ErrNegVolume    = errors.New("negative volume")
	ErrNonPositive  = errors.New("non-positive bid or ask")
	ErrCrossed      = errors.New("ask below bid")
	ErrNegSize      = errors.New("negative size")
)

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func checkOHLC(o, h, l, c float64) error {
	if l > math.Min(o, c) {
		return ErrLowAboveBody
	}
	if h < math.Max(o, c) {
		return ErrHighBelow
	}
	return nil
}

// CheckTradeBar returns the first invariant b violates, or nil.
func CheckTradeBar(b model.TradeBar) error {
	if !finite(b.Open, b.High, b.Low, b.Close, b.Volume) {
		return ErrNotFinite
	}
	if err := checkOHLC(b.Open, b.High, b.Low, b.Close); err != nil {
		return err
	}
	if b.Volume < 0 {
		return ErrNegVolume
	}
	return nil
}

// CheckQuoteBar returns the first invariant q violates, or nil.
func CheckQuoteBar(q model.QuoteBar) error {
	if !finite(q.BidOpen, q.BidHigh, q.BidLow, q.BidClose, q.AskOpen, q.AskHigh, q.AskLow, q.AskClose, q.LastBidSize, q.LastAskSize) {
		return ErrNotFinite
	}
	for _, p := range []float64{q.BidOpen, q.BidHigh, q.BidLow, q.BidClose, q.AskOpen, q.AskHigh, q.AskLow, q.AskClose} {
		if p <= 0 {
			return ErrNonPositive
		}
	}
	if q.LastBidSize < 0 || q.LastAskSize < 0 {
		return ErrNegSize
	}
	if q.AskClose < q.BidClose || q.AskOpen < q.BidOpen {
		return ErrCrossed
	}
	if err := checkOHLC(q.BidOpen, q.BidHigh, q.BidLow, q.BidClose); err != nil {
		return err
	}
	return checkOHLC(q.AskOpen, q.AskHigh, q.AskLow, q.AskClose)
}

// CheckOptionBar adds the open-interest sign check to CheckTradeBar.
func CheckOptionBar(b model.OptionBar) error {
	if err := CheckTradeBar(b.TradeBar); err != nil {
		return err
	}
	if !finite(b.OpenInterest) {
		return ErrNotFinite
	}
	if b.OpenInterest < 0 {
		return ErrNegVolume
	}
	return nil
}

// CleanOHLCV drops bars violating an OHLCV invariant, keeping input order.
func CleanOHLCV(bars []model.TradeBar) []model.TradeBar {
	return filter(bars, CheckTradeBar)
}

// CleanQuotes drops quote bars with non-positive prices, negative sizes or a crossed spread.
func CleanQuotes(bars []model.QuoteBar) []model.QuoteBar {
	return filter(bars, CheckQuoteBar)
}

// CleanOptions is CleanOHLCV for option bars.
func CleanOptions(bars []model.OptionBar) []model.OptionBar {
	return filter(bars, CheckOptionBar)
}

func filter[T any](in []T, check func(T) error) []T {
	out := make([]T, 0, len(in))
	for _, r := range in {
		if check(r) == nil {
			out = append(out, r)
		}
	}
	return out
}

// SortDedup orders records by time and keeps the first record of each timestamp.
func SortDedup[T any](in []T, at func(T) time.Time) []T {
	out := make([]T, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return at(out[i]).Before(at(out[j])) })
	n := 0
	for i, r := range out {
		if i > 0 && at(r).Equal(at(out[n-1])) {
			continue
		}
		out[n] = r
		n++
	}
	return out[:n]
}

// Stats counts what one cleaning pass removed.
type Stats struct {
	Input      int
	Invalid    int
	Duplicates int
}

// Kept is the number of records that survived.
func (s Stats) Kept() int { return s.Input - s.Invalid - s.Duplicates }

// Clean runs the single cleaning pass over a series: drop invalid records, sort, dedupe.
func Clean(s model.Series) (model.Series, Stats) {
	st := Stats{Input: s.Len()}
	switch s.Kind {
	case model.KindQuote:
		valid := CleanQuotes(s.Quotes)
		st.Invalid = len(s.Quotes) - len(valid)
		s.Quotes = SortDedup(valid, func(q model.QuoteBar) time.Time { return q.Time })
		st.Duplicates = len(valid) - len(s.Quotes)
	case model.KindOption:
		valid := CleanOptions(s.Options)
		st.Invalid = len(s.Options) - len(valid)
		s.Options = SortDedup(valid, func(o model.OptionBar) time.Time { return o.Time })
		st.Duplicates = len(valid) - len(s.Options)
	default:
		valid := CleanOHLCV(s.Trades)
		st.Invalid = len(s.Trades) - len(valid)
		s.Trades = SortDedup(valid, func(b model.TradeBar) time.Time { return b.Time })
		st.Duplicates = len(valid) - len(s.Trades)
	}
	return s, st
}
