package nseindia

import (
	"context"
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
	sym := p.Resolve("reliance.ns")
	assert.Equal(t, model.Symbol{Ticker: "RELIANCE", Class: model.Equity, Venue: "nse"}, sym)
	assert.Equal(t, "Asia/Kolkata", sym.Timezone())
	assert.Len(t, Nifty50, 50)
}

func TestFetchPrimesCookiesAndChunks(t *testing.T) {
	var ranges []string
	primes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			primes++
			http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "session", Path: "/"})
			fmt.Fprint(w, "<html></html>")
		case "/api/historical/cm/equity":
			c, err := r.Cookie("nsit")
			if err != nil || c.Value != "session" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			q := r.URL.Query()
			assert.Equal(t, "RELIANCE", q.Get("symbol"))
			assert.Equal(t, `["EQ"]`, q.Get("series"))
			ranges = append(ranges, q.Get("from")+".."+q.Get("to"))
			if q.Get("from") == "01-01-2024" {
				fmt.Fprint(w, `{"data":[
					{"CH_SYMBOL":"RELIANCE","CH_SERIES":"EQ","CH_TIMESTAMP":"2024-01-02","CH_OPENING_PRICE":2590.5,"CH_TRADE_HIGH_PRICE":2600,"CH_TRADE_LOW_PRICE":2570.1,"CH_CLOSING_PRICE":2585,"CH_TOT_TRADED_QTY":4512345},
					{"CH_SYMBOL":"RELIANCE","CH_SERIES":"EQ","CH_TIMESTAMP":"2024-01-01","CH_OPENING_PRICE":"2,580.00","CH_TRADE_HIGH_PRICE":"2595","CH_TRADE_LOW_PRICE":"2575","CH_CLOSING_PRICE":"2590","CH_TOT_TRADED_QTY":"3000000"}]}`)
				return
			}
			fmt.Fprint(w, `{"data":[]}`)
		}
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL, RPM: 60000})
	sym := p.Resolve("RELIANCE")
	out, err := p.Fetch(context.Background(), provider.Request{
		Symbol: sym, Resolution: model.Daily,
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, primes)
	assert.Equal(t, []string{"01-01-2024..30-03-2024", "31-03-2024..15-04-2024"}, ranges)
	bars := out[0].Trades
	require.Len(t, bars, 2)
	ist := model.LoadLocation("Asia/Kolkata")
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, ist), bars[0].Time)
	assert.Equal(t, 2580.0, bars[0].Open)
	assert.Equal(t, float64(4512345), bars[1].Volume)
}

func TestFetchDailyOnly(t *testing.T) {
	p := New(Config{})
	_, err := p.Fetch(context.Background(), provider.Request{Symbol: p.Resolve("TCS"), Resolution: model.Minute})
	assert.ErrorIs(t, err, base.ErrUnsupportedResolution)
}
