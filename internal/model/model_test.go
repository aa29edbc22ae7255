package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuturesProductTable(t *testing.T) {
	want := map[string]FuturesProduct{
		"ES":  {"ES", "CME", 100},
		"NQ":  {"NQ", "CME", 100},
		"RTY": {"RTY", "CME", 100},
		"6E":  {"6E", "CME", 100000},
		"YM":  {"YM", "CBOT", 1},
		"ZC":  {"ZC", "CBOT", 100},
		"ZS":  {"ZS", "CBOT", 100},
		"ZW":  {"ZW", "CBOT", 100},
		"ZB":  {"ZB", "CBOT", 1000000},
		"ZN":  {"ZN", "CBOT", 1000000},
		"GC":  {"GC", "COMEX", 10},
		"SI":  {"SI", "COMEX", 1000},
		"HG":  {"HG", "COMEX", 10000},
		"CL":  {"CL", "NYMEX", 1000},
		"NG":  {"NG", "NYMEX", 1000},
	}
	assert.Equal(t, want, FuturesProducts())
}

func TestLookupFuturesProduct(t *testing.T) {
	tests := []struct {
		in       string
		root     string
		exchange string
		ok       bool
	}{
		{"ES", "ES", "CME", true},
		{"es.FUT", "ES", "CME", true},
		{"ES.c.0", "ES", "CME", true},
		{"C:CL", "CL", "NYMEX", true},
		{"GC", "GC", "COMEX", true},
		{"XX", "XX", "CME", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, ok := LookupFuturesProduct(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.root, p.Root)
			assert.Equal(t, tt.exchange, p.Exchange)
		})
	}
	p, _ := LookupFuturesProduct("XX")
	assert.Equal(t, int64(10000), p.Multiplier)
}

func TestParseResolution(t *testing.T) {
	for _, r := range Resolutions {
		got, err := ParseResolution(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	got, err := ParseResolution("Day")
	require.NoError(t, err)
	assert.Equal(t, Daily, got)

	_, err = ParseResolution("fortnight")
	assert.Error(t, err)
}

func TestProfiles(t *testing.T) {
	assert.Equal(t, int64(10000), ProfileOf(Equity).PriceScale)
	assert.False(t, ProfileOf(Crypto).ScaledPrices())
	assert.True(t, ProfileOf(Crypto).FloatVolume)
	assert.False(t, ProfileOf(Forex).ScaledPrices())
	assert.Equal(t, "Asia/Kolkata", Symbol{Ticker: "RELIANCE", Class: Equity, Venue: "nse"}.Timezone())
	assert.Equal(t, "America/New_York", Symbol{Ticker: "AAPL", Class: Equity, Venue: "alpaca"}.Timezone())
	assert.Equal(t, "UTC", Symbol{Ticker: "BTCUSDT", Class: Crypto, Venue: "binance"}.Timezone())
}

func TestBucketStart(t *testing.T) {
	ny := LoadLocation("America/New_York")
	kolkata := LoadLocation("Asia/Kolkata")
	ts := time.Date(2024, 3, 6, 15, 47, 31, 0, time.UTC) // Wednesday, 10:47:31 ET

	assert.Equal(t, time.Date(2024, 3, 6, 10, 47, 0, 0, ny), BucketStart(ts, Minute, ny))
	assert.Equal(t, time.Date(2024, 3, 6, 10, 0, 0, 0, ny), BucketStart(ts, Hour, ny))
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, ny), BucketStart(ts, Daily, ny))
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, ny), BucketStart(ts, Weekly, ny))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, ny), BucketStart(ts, Monthly, ny))
	// half-hour offset zone: hour buckets follow local wall clock
	assert.Equal(t, time.Date(2024, 3, 6, 21, 0, 0, 0, kolkata), BucketStart(ts, Hour, kolkata))
}

func TestAggregateQuotes(t *testing.T) {
	base := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	ticks := []QuoteTick{
		{Time: base.Add(70 * time.Second), Bid: 100.2, Ask: 100.4, BidSize: 3, AskSize: 4},
		{Time: base.Add(5 * time.Second), Bid: 100.0, Ask: 100.1, BidSize: 1, AskSize: 1},
		{Time: base.Add(20 * time.Second), Bid: 99.9, Ask: 100.3, BidSize: 2, AskSize: 2},
		{Time: base.Add(40 * time.Second), Bid: 0, Ask: 100.3},
	}
	bars := AggregateQuotes(ticks, Minute, LoadLocation("America/New_York"))
	require.Len(t, bars, 2)

	first := bars[0]
	assert.True(t, first.Time.Equal(base))
	assert.Equal(t, 100.0, first.BidOpen)
	assert.Equal(t, 99.9, first.BidLow)
	assert.Equal(t, 100.0, first.BidHigh)
	assert.Equal(t, 99.9, first.BidClose)
	assert.Equal(t, 100.3, first.AskHigh)
	assert.Equal(t, 100.3, first.AskClose)
	assert.Equal(t, 2.0, first.LastBidSize)

	assert.True(t, bars[1].Time.Equal(base.Add(time.Minute)))
	assert.Equal(t, 100.2, bars[1].BidOpen)
}

func TestSeriesLenAndTimes(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := NewTradeSeries(Symbol{Ticker: "AAPL"}, Daily, []TradeBar{{Time: ts}, {Time: ts.AddDate(0, 0, 1)}})
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []time.Time{ts, ts.AddDate(0, 0, 1)}, s.Times())
	assert.Equal(t, "trade", KindOption.FileKind())
	assert.Equal(t, 2, Count([]Series{s, NewQuoteSeries(Symbol{}, Daily, nil)}))
}
