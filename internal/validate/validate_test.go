package validate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lean-data/internal/canon"
	"lean-data/internal/model"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func bar(day int, o, h, l, c, v float64) model.TradeBar {
	return model.TradeBar{Time: t0.AddDate(0, 0, day), Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestCleanOHLCV(t *testing.T) {
	in := []model.TradeBar{
		bar(2, 10, 11, 9, 10.5, 100),
		bar(0, 10, 9.9, 9, 10.5, 100),   // high below close
		bar(1, 10, 11, 10.2, 10.5, 100), // low above open
		bar(3, 10, 11, 9, 10.5, -1),
		bar(4, 10, 10, 10, 10, 0),
	}
	out := CleanOHLCV(in)
	require.Len(t, out, 2)
	assert.Equal(t, in[0], out[0], "order preserved")
	assert.Equal(t, in[4], out[1])
}

func TestCheckTradeBarErrors(t *testing.T) {
	assert.ErrorIs(t, CheckTradeBar(bar(0, 10, 9.9, 9, 10.5, 1)), ErrHighBelow)
	assert.ErrorIs(t, CheckTradeBar(bar(0, 10, 11, 10.2, 10.5, 1)), ErrLowAboveBody)
	assert.ErrorIs(t, CheckTradeBar(bar(0, 10, 11, 9, 10.5, -5)), ErrNegVolume)
}

func TestCleanQuotes(t *testing.T) {
	good := model.QuoteBar{Time: t0, BidOpen: 1.1, BidHigh: 1.2, BidLow: 1.0, BidClose: 1.1, AskOpen: 1.11, AskHigh: 1.21, AskLow: 1.01, AskClose: 1.11}
	crossed := good
	crossed.AskClose = 1.05
	zero := good
	zero.BidLow = 0
	negSize := good
	negSize.LastAskSize = -1

	out := CleanQuotes([]model.QuoteBar{crossed, good, zero, negSize})
	assert.Equal(t, []model.QuoteBar{good}, out)
	assert.ErrorIs(t, CheckQuoteBar(crossed), ErrCrossed)
	assert.ErrorIs(t, CheckQuoteBar(zero), ErrNonPositive)
	assert.ErrorIs(t, CheckQuoteBar(negSize), ErrNegSize)
}

func TestCleanSortsAndDedupes(t *testing.T) {
	s := model.NewTradeSeries(model.Symbol{Ticker: "AAPL", Class: model.Equity}, model.Daily, []model.TradeBar{
		bar(2, 10, 11, 9, 10, 1),
		bar(0, 10, 11, 9, 10, 2),
		bar(2, 12, 13, 11, 12, 3),
		bar(1, 10, 9, 9, 10, 4),
	})
	cleaned, st := Clean(s)
	assert.Equal(t, Stats{Input: 4, Invalid: 1, Duplicates: 1}, st)
	assert.Equal(t, 2, st.Kept())
	require.Len(t, cleaned.Trades, 2)
	assert.Equal(t, 2.0, cleaned.Trades[0].Volume)
	assert.Equal(t, 1.0, cleaned.Trades[1].Volume, "first of a duplicate timestamp is kept")
}

func TestAuditRows(t *testing.T) {
	rows := [][]string{
		{"20240102 00:00", "100", "110", "90", "105", "10"},
		{"20240103 00:00", "100", "99", "90", "105", "10"},
		{"20240103 00:00", "100", "110", "90", "105", "-1"},
		{"20240105 00:00", "100", "110", "90"},
	}
	r := AuditRows(rows, model.KindTrade)
	assert.False(t, r.Valid)
	assert.Equal(t, 4, r.Bars)
	rowsHit := map[int]bool{}
	for _, v := range r.Violations {
		rowsHit[v.Row] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, rowsHit)
	assert.Equal(t, "20240102 00:00", r.First)
	assert.Equal(t, "20240103 00:00", r.Last)
	assert.Equal(t, 90.0, r.PriceMin)
	assert.Equal(t, 110.0, r.PriceMax)
	assert.Equal(t, 10.0, r.VolumeMax)
}

func TestAuditQuoteColumns(t *testing.T) {
	r := AuditRows([][]string{
		{"34200000", "1", "1.2", "0.9", "1.1", "1.01", "1.21", "0.91", "1.11"},
		{"34260000", "1", "1.2", "0.9", "1.1", "1.01", "1.21", "0.91"},
	}, model.KindQuote)
	require.Len(t, r.Violations, 1)
	assert.Equal(t, 1, r.Violations[0].Row)
}

func TestAuditArchive(t *testing.T) {
	dir := t.TempDir()
	sym := model.Symbol{Ticker: "AAPL", Class: model.Equity, Venue: "alpaca"}
	ny := sym.Location()
	bars := []model.TradeBar{
		{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, ny), Open: 187.15, High: 188.44, Low: 183.89, Close: 185.64, Volume: 82488700},
		{Time: time.Date(2024, 1, 3, 0, 0, 0, 0, ny), Open: 184.22, High: 185.88, Low: 183.43, Close: 184.25, Volume: 58414500},
	}
	rows, err := canon.RenderTradeBarCSV(bars, sym, model.Daily)
	require.NoError(t, err)
	path := filepath.Join(dir, "aapl.zip")
	require.NoError(t, canon.WriteArchive(rows, path, canon.InnerName(sym, model.Daily, model.KindTrade)))

	r, err := AuditArchive(path)
	require.NoError(t, err)
	assert.True(t, r.Valid)
	assert.Equal(t, model.KindTrade, r.Kind)
	assert.Equal(t, 2, r.Bars)
	assert.Equal(t, 1834300.0, r.PriceMin)
	assert.Equal(t, 1884400.0, r.PriceMax)
	assert.Equal(t, 82488700.0+58414500.0, r.VolumeTotal)

	optRows := [][]string{{"20240102 00:00", "100", "110", "90", "105", "10", "500"}}
	optPath := filepath.Join(dir, "spy.zip")
	require.NoError(t, canon.WriteArchive(optRows, optPath, "spy_daily_trade.csv"))
	r, err = AuditArchive(optPath)
	require.NoError(t, err)
	assert.Equal(t, model.KindOption, r.Kind)
	assert.True(t, r.Valid)
}
