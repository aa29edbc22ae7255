package quandl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

func TestResolve(t *testing.T) {
	p := New(Config{})
	assert.Equal(t, model.Symbol{Ticker: "WIKI_AAPL", Class: model.Equity, Venue: "quandl"}, p.Resolve("WIKI/AAPL"))
	assert.Equal(t, model.Economic, p.Resolve("FRED/GDP").Class)
	assert.Equal(t, model.Index, p.Resolve("LBMA/GOLD").Class)
}

func decodeRows(t *testing.T, s string) [][]any {
	t.Helper()
	var rows [][]any
	require.NoError(t, json.Unmarshal([]byte(s), &rows))
	return rows
}

func TestMapColumns(t *testing.T) {
	ny := model.LoadLocation("America/New_York")
	t.Run("full ohlc", func(t *testing.T) {
		bars, err := mapColumns([]string{"Date", "Open", "High", "Low", "Close", "Volume"},
			decodeRows(t, `[["2018-03-27",173.68,175.15,166.92,168.34,38962839]]`), ny)
		require.NoError(t, err)
		require.Len(t, bars, 1)
		assert.Equal(t, model.TradeBar{Time: time.Date(2018, 3, 27, 0, 0, 0, 0, ny), Open: 173.68, High: 175.15, Low: 166.92, Close: 168.34, Volume: 38962839}, bars[0])
	})
	t.Run("close only", func(t *testing.T) {
		bars, err := mapColumns([]string{"Date", "Settle"}, decodeRows(t, `[["2024-01-03",2.5],["2024-01-02",2.4]]`), ny)
		require.NoError(t, err)
		require.Len(t, bars, 2)
		assert.Equal(t, 2.4, bars[0].Open)
		assert.Equal(t, 2.4, bars[0].High)
		assert.Zero(t, bars[0].Volume)
	})
	t.Run("first numeric", func(t *testing.T) {
		bars, err := mapColumns([]string{"Date", "Note", "Rate"}, decodeRows(t, `[["2024-01-02","x",5.33]]`), ny)
		require.NoError(t, err)
		require.Len(t, bars, 1)
		assert.Equal(t, 5.33, bars[0].Close)
	})
	t.Run("nothing numeric", func(t *testing.T) {
		_, err := mapColumns([]string{"Date", "Note"}, decodeRows(t, `[["2024-01-02","x"]]`), ny)
		assert.ErrorIs(t, err, base.ErrNoData)
	})
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets/FRED/GDP/data.json", r.URL.Path)
		assert.Equal(t, "asc", r.URL.Query().Get("order"))
		fmt.Fprint(w, `{"dataset_data":{"column_names":["Date","Value"],"data":[["2024-01-01",28269.174]]}}`)
	}))
	defer srv.Close()

	p := New(Config{APIKey: "k", BaseURL: srv.URL, RPM: 60000})
	sym := p.Resolve("FRED/GDP")
	out, err := p.Fetch(context.Background(), provider.Request{Symbol: sym, Resolution: model.Daily,
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, model.KindEconomic, out[0].Kind)
	require.Len(t, out[0].Trades, 1)
	assert.Equal(t, 28269.174, out[0].Trades[0].Close)
}
