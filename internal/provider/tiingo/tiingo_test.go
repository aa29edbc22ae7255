package tiingo

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

func fakeTiingo(t *testing.T, routes map[string]string) *Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"detail":"Not found."}`)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "secret", BaseURL: srv.URL, RPM: 60000})
}

func jan(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func TestResolve(t *testing.T) {
	p := New(Config{})
	assert.Equal(t, model.Option, p.Resolve("AAPL240119C00190000").Class)
	assert.Equal(t, model.Crypto, p.Resolve("btcusd").Class)
	assert.Equal(t, model.Crypto, p.Resolve("ETH-USD").Class)
	assert.Equal(t, model.Forex, p.Resolve("EURUSD").Class)
	assert.Equal(t, model.Equity, p.Resolve("AAPL").Class)
}

func TestFetchEquityDaily(t *testing.T) {
	p := fakeTiingo(t, map[string]string{
		"/tiingo/daily/aapl/prices": `[
			{"date":"2024-01-02T00:00:00.000Z","open":187.15,"high":188.44,"low":183.885,"close":185.64,"volume":82488674},
			{"date":"2024-01-03T00:00:00.000Z","open":184.22,"high":185.88,"low":183.43,"close":184.25,"volume":58414460}]`,
	})
	out, err := p.Fetch(context.Background(), provider.Request{Symbol: p.Resolve("AAPL"), Resolution: model.Daily, Start: jan(2), End: jan(3)})
	require.NoError(t, err)
	bars := out[0].Trades
	require.Len(t, bars, 2)
	ny := model.LoadLocation("America/New_York")
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, ny), bars[0].Time)
	assert.Equal(t, 183.885, bars[0].Low)
}

func TestFetchCrypto(t *testing.T) {
	p := fakeTiingo(t, map[string]string{
		"/tiingo/crypto/prices": `[{"ticker":"btcusd","priceData":[
			{"date":"2024-01-02T00:00:00+00:00","open":44000,"high":45000,"low":43900,"close":44900,"volume":1234.5}]}]`,
	})
	out, err := p.Fetch(context.Background(), provider.Request{Symbol: p.Resolve("BTCUSD"), Resolution: model.Daily, Start: jan(1), End: jan(5)})
	require.NoError(t, err)
	require.Len(t, out[0].Trades, 1)
	assert.Equal(t, jan(2), out[0].Trades[0].Time)
	assert.Equal(t, 1234.5, out[0].Trades[0].Volume)
}

func TestFetchForexAsQuotes(t *testing.T) {
	p := fakeTiingo(t, map[string]string{
		"/tiingo/fx/eurusd/prices": `[{"date":"2024-01-02T00:00:00.000Z","ticker":"eurusd","open":1.1037,"high":1.1046,"low":1.0937,"close":1.094}]`,
	})
	out, err := p.Fetch(context.Background(), provider.Request{Symbol: p.Resolve("EURUSD"), Resolution: model.Daily, Start: jan(1), End: jan(5)})
	require.NoError(t, err)
	require.Len(t, out[0].Quotes, 1)
	assert.Equal(t, 1.094, out[0].Quotes[0].AskClose)
}

func TestFetchOptionWithOpenInterest(t *testing.T) {
	p := fakeTiingo(t, map[string]string{
		"/tiingo/options/AAPL240119C00190000/prices": `[
			{"date":"2023-12-29T00:00:00.000Z","open":3,"high":3,"low":3,"close":3,"volume":1,"openInterest":1},
			{"date":"2024-01-02T00:00:00.000Z","open":2.5,"high":2.9,"low":2.1,"close":2.2,"volume":1500,"openInterest":20456}]`,
	})
	sym := p.Resolve("AAPL240119C00190000")
	out, err := p.Fetch(context.Background(), provider.Request{Symbol: sym, Resolution: model.Daily, Start: jan(2), End: jan(5)})
	require.NoError(t, err)
	require.Equal(t, model.KindOption, out[0].Kind)
	require.Len(t, out[0].Options, 1)
	assert.Equal(t, float64(20456), out[0].Options[0].OpenInterest)
	assert.Equal(t, 2.2, out[0].Options[0].Close)
}

func TestFetchIntradayRejected(t *testing.T) {
	p := New(Config{})
	_, err := p.Fetch(context.Background(), provider.Request{Symbol: p.Resolve("AAPL"), Resolution: model.Minute, Start: jan(2), End: jan(2)})
	assert.ErrorIs(t, err, base.ErrUnsupportedResolution)
}

func TestFetchUnknownTickerIsPermanent(t *testing.T) {
	p := fakeTiingo(t, nil)
	_, err := p.Fetch(context.Background(), provider.Request{Symbol: p.Resolve("ZZZZ"), Resolution: model.Daily, Start: jan(2), End: jan(2)})
	assert.ErrorIs(t, err, base.ErrPermanent)
}

func TestDocuments(t *testing.T) {
	p := fakeTiingo(t, map[string]string{
		"/tiingo/fundamentals/meta":            `[{"ticker":"aapl","sector":"Technology"}]`,
		"/tiingo/fundamentals/aapl/statements": `[]`,
		"/tiingo/news":                         `[{"id":1,"title":"Apple"}]`,
	})
	sym := p.Resolve("AAPL")
	docs, err := p.FetchFundamentals(context.Background(), sym)
	assert.ErrorIs(t, err, base.ErrPermanent) // daily metrics not in the fake
	require.Len(t, docs, 1)
	assert.Equal(t, "meta", docs[0].Name)

	news, err := p.FetchNews(context.Background(), sym, jan(1), jan(31))
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Equal(t, "news", news[0].Category)
}
