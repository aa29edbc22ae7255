package model

import (
	"encoding/json"
	"time"
)

// TradeBar represents one aggregated OHLCV interval.
// Prices are in vendor units; scaling happens only when the bar is emitted.
type TradeBar struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// QuoteBar is an aggregated bid/ask interval without volume.
// The last sizes are kept for validation but are not part of the row format.
type QuoteBar struct {
	Time        time.Time `json:"t"`
	BidOpen     float64   `json:"bo"`
	BidHigh     float64   `json:"bh"`
	BidLow      float64   `json:"bl"`
	BidClose    float64   `json:"bc"`
	AskOpen     float64   `json:"ao"`
	AskHigh     float64   `json:"ah"`
	AskLow      float64   `json:"al"`
	AskClose    float64   `json:"ac"`
	LastBidSize float64   `json:"bs,omitempty"`
	LastAskSize float64   `json:"as,omitempty"`
}

// OptionBar is a TradeBar plus open interest.
type OptionBar struct {
	TradeBar
	OpenInterest float64 `json:"oi"`
}

// Document is an opaque structured payload keyed by (symbol, as-of date):
// fundamentals, statements, earnings, news, option chains.
type Document struct {
	Symbol   Symbol          `json:"symbol"`
	AsOf     time.Time       `json:"as_of"`
	Category string          `json:"category"` // directory: fundamentals, earnings, financials, news, options
	Name     string          `json:"name"`     // file suffix: overview, income_statement, ...
	Payload  json.RawMessage `json:"payload"`
}

// Kind tags which record slice of a Series is populated.
type Kind string

const (
	KindTrade    Kind = "trade"
	KindQuote    Kind = "quote"
	KindOption   Kind = "option"
	KindEconomic Kind = "economic" // TradeBars synthesized from a scalar series
)

// FileKind is the kind token used in archive and inner CSV names.
func (k Kind) FileKind() string {
	if k == KindOption {
		return string(KindTrade)
	}
	return string(k)
}

// Series is a run of records of one kind for one symbol and resolution.
// Trades backs both KindTrade and KindEconomic.
type Series struct {
	Symbol     Symbol
	Resolution Resolution
	Kind       Kind
	Trades     []TradeBar
	Quotes     []QuoteBar
	Options    []OptionBar
}

// NewTradeSeries wraps bars as a KindTrade series.
func NewTradeSeries(sym Symbol, res Resolution, bars []TradeBar) Series {
	return Series{Symbol: sym, Resolution: res, Kind: KindTrade, Trades: bars}
}

// NewQuoteSeries wraps bars as a KindQuote series.
func NewQuoteSeries(sym Symbol, res Resolution, bars []QuoteBar) Series {
	return Series{Symbol: sym, Resolution: res, Kind: KindQuote, Quotes: bars}
}

// Len returns the number of records carried by the populated slice.
func (s Series) Len() int {
	switch s.Kind {
	case KindQuote:
		return len(s.Quotes)
	case KindOption:
		return len(s.Options)
	default:
		return len(s.Trades)
	}
}

// Times returns record timestamps in slice order.
func (s Series) Times() []time.Time {
	out := make([]time.Time, 0, s.Len())
	switch s.Kind {
	case KindQuote:
		for _, q := range s.Quotes {
			out = append(out, q.Time)
		}
	case KindOption:
		for _, o := range s.Options {
			out = append(out, o.Time)
		}
	default:
		for _, b := range s.Trades {
			out = append(out, b.Time)
		}
	}
	return out
}

// Count sums record counts over a batch.
func Count(batch []Series) int {
	n := 0
	for _, s := range batch {
		n += s.Len()
	}
	return n
}

// MidQuotes turns mid-price bars into quote bars with bid = ask. Vendors that only
// publish a single forex price are emitted this way.
func MidQuotes(bars []TradeBar) []QuoteBar {
	out := make([]QuoteBar, len(bars))
	for i, b := range bars {
		out[i] = QuoteBar{
			Time:    b.Time,
			BidOpen: b.Open, BidHigh: b.High, BidLow: b.Low, BidClose: b.Close,
			AskOpen: b.Open, AskHigh: b.High, AskLow: b.Low, AskClose: b.Close,
		}
	}
	return out
}
