package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lean-data/internal/canon"
	"lean-data/internal/manifest"
	"lean-data/internal/model"
	"lean-data/internal/saver"
)

func readRows(t *testing.T, path string) (string, []string) {
	t.Helper()
	name, data, err := canon.ReadArchive(path)
	require.NoError(t, err)
	return name, strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestSeriesPaths(t *testing.T) {
	l := NewLayout("/data", nil)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		sym  model.Symbol
		res  model.Resolution
		kind model.Kind
		want string
	}{
		{"equity daily", model.Symbol{Ticker: "AAPL", Class: model.Equity, Venue: "alpaca"}, model.Daily, model.KindTrade, "/data/equity/alpaca/daily/aapl.zip"},
		{"equity minute quote", model.Symbol{Ticker: "AAPL", Class: model.Equity, Venue: "alpaca"}, model.Minute, model.KindQuote, "/data/equity/alpaca/minute/aapl/20240601_quote.zip"},
		{"crypto minute", model.Symbol{Ticker: "BTCUSDT", Class: model.Crypto, Venue: "binance"}, model.Minute, model.KindTrade, "/data/crypto/binance/minute/btcusdt/20240601_trade.zip"},
		{"forex daily", model.Symbol{Ticker: "EURUSD", Class: model.Forex, Venue: "yahoo"}, model.Daily, model.KindQuote, "/data/equity/forex/yahoo/daily/eurusd.zip"},
		{"futures daily", model.Symbol{Ticker: "ES", Class: model.Future, Venue: "cme"}, model.Daily, model.KindTrade, "/data/future/cme/daily/es/20240601_es_daily.csv"},
		{"economic", model.Symbol{Ticker: "UNRATE", Class: model.Economic, Venue: "fred"}, model.Daily, model.KindEconomic, "/data/economic/fred/daily/unrate.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), l.SeriesPath(tt.sym, tt.res, tt.kind, day))
		})
	}

	doc := model.Document{Symbol: model.Symbol{Ticker: "IBM", Class: model.Equity, Venue: "alphavantage"}, Category: "fundamentals", Name: "fundamentals"}
	assert.Equal(t, filepath.FromSlash("/data/equity/alphavantage/fundamentals/ibm_fundamentals.json"), l.DocumentPath(doc))

	over := NewLayout("/data", map[model.AssetClass]string{model.Forex: "forex"})
	assert.Equal(t, filepath.FromSlash("/data/forex"), over.ClassDir(model.Forex))
}

func TestWriteDailyEquity(t *testing.T) {
	root := t.TempDir()
	store, err := manifest.Open(filepath.Join(root, "manifest.db"))
	require.NoError(t, err)
	defer store.Close()
	w := NewWriter(NewLayout(root, nil), nil, store)
	w.RunID = "run-1"

	sym := model.Symbol{Ticker: "AAPL", Class: model.Equity, Venue: "alpaca"}
	ny := sym.Location()
	var bars []model.TradeBar
	for d := 2; d <= 5; d++ {
		bars = append(bars, model.TradeBar{Time: time.Date(2024, 1, d, 0, 0, 0, 0, ny), Open: 185, High: 186.5, Low: 184.25, Close: 185.5, Volume: 1000})
	}
	written, err := w.WriteSeries(context.Background(), "alpaca", model.NewTradeSeries(sym, model.Daily, bars))
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, filepath.Join(root, "equity", "alpaca", "daily", "aapl.zip"), written[0].Path)
	assert.Equal(t, 4, written[0].Rows)

	name, rows := readRows(t, written[0].Path)
	assert.Equal(t, "aapl_daily_trade.csv", name)
	require.Len(t, rows, 4)
	assert.Equal(t, "20240102 00:00,1850000,1865000,1842500,1855000,1000", rows[0])
	assert.True(t, strings.HasPrefix(rows[3], "20240105 00:00,"))

	e, ok, err := store.Get(context.Background(), "equity/alpaca/daily/aapl.zip")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, e.Rows)
	assert.Equal(t, "run-1", e.RunID)

	// second identical write produces identical bytes
	first, err := os.ReadFile(written[0].Path)
	require.NoError(t, err)
	_, err = w.WriteSeries(context.Background(), "alpaca", model.NewTradeSeries(sym, model.Daily, bars))
	require.NoError(t, err)
	second, err := os.ReadFile(written[0].Path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWriteCryptoMinuteSplitsByUTCDate(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(NewLayout(root, nil), nil, nil)
	sym := model.Symbol{Ticker: "BTCUSDT", Class: model.Crypto, Venue: "binance"}
	start := time.Date(2024, 6, 1, 23, 58, 0, 0, time.UTC)
	var bars []model.TradeBar
	for i := 0; i < 4; i++ {
		bars = append(bars, model.TradeBar{Time: start.Add(time.Duration(i) * time.Minute), Open: 67000, High: 67010, Low: 66990, Close: 67005, Volume: 1.5})
	}
	written, err := w.WriteSeries(context.Background(), "binance", model.NewTradeSeries(sym, model.Minute, bars))
	require.NoError(t, err)
	require.Len(t, written, 2)
	assert.Equal(t, filepath.Join(root, "crypto", "binance", "minute", "btcusdt", "20240601_trade.zip"), written[0].Path)
	assert.Equal(t, filepath.Join(root, "crypto", "binance", "minute", "btcusdt", "20240602_trade.zip"), written[1].Path)

	name, rows := readRows(t, written[0].Path)
	assert.Equal(t, "btcusdt_minute_trade.csv", name)
	assert.Equal(t, []string{"20240601 23:58,67000,67010,66990,67005,1.5", "20240601 23:59,67000,67010,66990,67005,1.5"}, rows)
}

func TestWriteEquityMinuteBucketsInEastern(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(NewLayout(root, nil), nil, nil)
	sym := model.Symbol{Ticker: "AAPL", Class: model.Equity, Venue: "alpaca"}
	// 23:30 and 00:30 UTC on Jan 3 are both Jan 2 in New York
	times := []time.Time{
		time.Date(2024, 1, 2, 23, 30, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 30, 0, 0, time.UTC),
	}
	var quotes []model.QuoteBar
	for _, ts := range times {
		quotes = append(quotes, model.QuoteBar{Time: ts, BidOpen: 1, BidHigh: 1, BidLow: 1, BidClose: 1, AskOpen: 1.01, AskHigh: 1.01, AskLow: 1.01, AskClose: 1.01})
	}
	written, err := w.WriteSeries(context.Background(), "alpaca", model.NewQuoteSeries(sym, model.Minute, quotes))
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, filepath.Join(root, "equity", "alpaca", "minute", "aapl", "20240102_quote.zip"), written[0].Path)
	_, rows := readRows(t, written[0].Path)
	assert.Equal(t, "66600000,10000,10000,10000,10000,10100,10100,10100,10100", rows[0])
}

func TestWriteFuturesPerDayCSV(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(NewLayout(root, nil), nil, nil)
	sym := model.Symbol{Ticker: "ES", Class: model.Future, Venue: "cme"}
	ny := sym.Location()
	var bars []model.TradeBar
	for _, d := range canon.TradingDays(time.Date(2024, 3, 1, 0, 0, 0, 0, ny), time.Date(2024, 3, 8, 0, 0, 0, 0, ny)) {
		bars = append(bars, model.TradeBar{Time: d, Open: 5100.25, High: 5140, Low: 5090.5, Close: 5137.75, Volume: 1523000})
	}
	written, err := w.WriteSeries(context.Background(), "polygon", model.NewTradeSeries(sym, model.Daily, bars))
	require.NoError(t, err)
	require.Len(t, written, 6)
	assert.Equal(t, filepath.Join(root, "future", "cme", "daily", "es", "20240301_es_daily.csv"), written[0].Path)
	data, err := os.ReadFile(written[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "20240301 00:00,510025,514000,509050,513775,1523000\n", string(data))
}

func TestWriteEmptySeries(t *testing.T) {
	w := NewWriter(NewLayout(t.TempDir(), nil), nil, nil)
	written, err := w.WriteSeries(context.Background(), "x", model.NewTradeSeries(model.Symbol{Ticker: "A"}, model.Daily, nil))
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestWriteDocumentAndMirror(t *testing.T) {
	root := t.TempDir()
	store, err := manifest.Open(filepath.Join(root, "manifest.db"))
	require.NoError(t, err)
	defer store.Close()
	w := NewWriter(NewLayout(root, nil), saver.JSONSaver{}, store)

	doc := model.Document{
		Symbol:   model.Symbol{Ticker: "IBM", Class: model.Equity, Venue: "alphavantage"},
		AsOf:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Category: "fundamentals",
		Name:     "fundamentals",
		Payload:  json.RawMessage(`{"Symbol":"IBM","PERatio":"22.1"}`),
	}
	wr, err := w.WriteDocument(context.Background(), "alphavantage", doc)
	require.NoError(t, err)
	data, err := os.ReadFile(wr.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"PERatio": "22.1"`)
	_, ok, err := store.Get(context.Background(), "equity/alphavantage/fundamentals/ibm_fundamentals.json")
	require.NoError(t, err)
	assert.True(t, ok)

	sym := model.Symbol{Ticker: "SPY", Class: model.Equity, Venue: "tiingo"}
	_, err = w.WriteSeries(context.Background(), "tiingo", model.NewTradeSeries(sym, model.Daily, []model.TradeBar{
		{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, sym.Location()), Open: 1, High: 2, Low: 1, Close: 2, Volume: 3},
	}))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "mirror", "equity", "tiingo", "daily", "spy.json"))
	assert.NoError(t, err)
}

func TestWriteDailyKeepsArchivedRecords(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(NewLayout(root, nil), nil, nil)
	sym := model.Symbol{Ticker: "AAPL", Class: model.Equity, Venue: "alpaca"}
	ny := sym.Location()
	bar := func(d int, close float64) model.TradeBar {
		return model.TradeBar{Time: time.Date(2024, 1, d, 0, 0, 0, 0, ny), Open: 10, High: 12, Low: 9, Close: close, Volume: 100}
	}
	ctx := context.Background()

	_, err := w.WriteSeries(ctx, "alpaca", model.NewTradeSeries(sym, model.Daily, []model.TradeBar{bar(2, 11), bar(3, 11)}))
	require.NoError(t, err)
	written, err := w.WriteSeries(ctx, "alpaca", model.NewTradeSeries(sym, model.Daily, []model.TradeBar{bar(3, 11.5), bar(4, 11), bar(5, 11)}))
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, 4, written[0].Rows)
	assert.Equal(t, bar(2, 0).Time, written[0].First)

	_, rows := readRows(t, written[0].Path)
	require.Len(t, rows, 4)
	assert.True(t, strings.HasPrefix(rows[0], "20240102 00:00,"))
	assert.Equal(t, "20240103 00:00,100000,120000,90000,115000,100", rows[1], "newer record wins inside the fetched span")
	assert.True(t, strings.HasPrefix(rows[3], "20240105 00:00,"))

	// an archive holding another kind is replaced
	q := model.QuoteBar{Time: bar(8, 0).Time, BidOpen: 1, BidHigh: 1, BidLow: 1, BidClose: 1, AskOpen: 1, AskHigh: 1, AskLow: 1, AskClose: 1}
	written, err = w.WriteSeries(ctx, "alpaca", model.NewQuoteSeries(sym, model.Daily, []model.QuoteBar{q}))
	require.NoError(t, err)
	name, rows := readRows(t, written[0].Path)
	assert.Equal(t, "aapl_daily_quote.csv", name)
	assert.Len(t, rows, 1)
}
