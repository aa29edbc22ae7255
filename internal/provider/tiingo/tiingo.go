// Package tiingo fetches end-of-day equity, crypto, forex and option prices plus
// fundamentals and news from the Tiingo REST API.
package tiingo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	Tag        = "tiingo"
	DefaultRPM = 50
	DefaultURL = "https://api.tiingo.com"
)

// occSymbol matches OCC option symbols such as AAPL240119C00190000.
var occSymbol = regexp.MustCompile(`^[A-Z]{1,6}\d{6}[CP]\d{8}$`)

var cryptoBases = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "XRP": true, "ADA": true, "DOGE": true, "LTC": true,
	"BCH": true, "DOT": true, "AVAX": true, "LINK": true, "MATIC": true, "BNB": true, "XLM": true,
}

var resampleFreq = map[model.Resolution]string{
	model.Daily:   "daily",
	model.Weekly:  "weekly",
	model.Monthly: "monthly",
}

var cryptoFreq = map[model.Resolution]string{
	model.Daily:   "1day",
	model.Weekly:  "7day",
	model.Monthly: "30day",
}

// Config holds the Tiingo token and endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	RPM     int
}

// Provider is the Tiingo adapter.
type Provider struct {
	base.Info
	cfg    Config
	client *base.Client
}

var (
	_ provider.DataProvider         = (*Provider)(nil)
	_ provider.FundamentalsProvider = (*Provider)(nil)
	_ provider.NewsProvider         = (*Provider)(nil)
)

// New creates a Tiingo adapter.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.RPM == 0 {
		cfg.RPM = DefaultRPM
	}
	return &Provider{
		Info: base.Info{
			Tag:         Tag,
			RPM:         cfg.RPM,
			Resolutions: []model.Resolution{model.Daily, model.Weekly, model.Monthly},
			Classes:     []model.AssetClass{model.Equity, model.Crypto, model.Forex, model.Option},
		},
		cfg: cfg,
		client: base.NewClient(Tag, cfg.RPM,
			base.WithHeader("Authorization", "Token "+cfg.APIKey),
			base.WithHeader("Content-Type", "application/json")),
	}
}

// Resolve classifies OCC option symbols, fiat pairs, crypto pairs and equities.
func (p *Provider) Resolve(ticker string) model.Symbol {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	compact := strings.ReplaceAll(t, " ", "")
	if occSymbol.MatchString(compact) {
		return p.Symbol(compact, model.Option)
	}
	if b, _, ok := base.SplitPair(t); ok {
		switch {
		case cryptoBases[b]:
			return p.Symbol(t, model.Crypto)
		case base.IsForexPair(t):
			return p.Symbol(t, model.Forex)
		}
	}
	return p.Symbol(t, model.Equity)
}

// Fetch returns daily-or-coarser bars. Intraday requests are refused with a warning;
// the IEX intraday feed is not part of this adapter.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	if err := p.CheckResolution(req.Resolution); err != nil {
		p.client.Logger().Warn("intraday not supported, skipping", "ticker", req.Ticker(), "resolution", req.Resolution)
		return nil, err
	}
	loc := req.Symbol.Location()
	from, to := base.DayRange(req.Start, req.End, loc)
	q := url.Values{}
	q.Set("startDate", req.Start.Format(time.DateOnly))
	q.Set("endDate", req.End.Format(time.DateOnly))

	switch req.Symbol.Class {
	case model.Crypto:
		return p.fetchCrypto(ctx, req, q, loc, from, to)
	case model.Forex:
		return p.fetchForex(ctx, req, q, loc, from, to)
	case model.Option:
		return p.fetchOption(ctx, req, q, loc, from, to)
	}
	q.Set("resampleFreq", resampleFreq[req.Resolution])
	q.Set("format", "json")
	var rows []priceRow
	endpoint := fmt.Sprintf("%s/tiingo/daily/%s/prices", p.cfg.BaseURL, url.PathEscape(strings.ToLower(req.Ticker())))
	if err := p.client.GetJSON(ctx, endpoint, q, http.Header{}, &rows); err != nil {
		return nil, err
	}
	bars, err := toTradeBars(rows, loc, from, to)
	if err != nil {
		return nil, err
	}
	return []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, bars)}, nil
}

func (p *Provider) fetchCrypto(ctx context.Context, req provider.Request, q url.Values, loc *time.Location, from, to time.Time) ([]model.Series, error) {
	b, quote, ok := base.SplitPair(req.Ticker())
	pair := strings.ToLower(req.Symbol.Ticker)
	if ok {
		pair = strings.ToLower(b + quote)
	}
	q.Set("tickers", pair)
	q.Set("resampleFreq", cryptoFreq[req.Resolution])
	var resp []struct {
		Ticker    string     `json:"ticker"`
		PriceData []priceRow `json:"priceData"`
	}
	if err := p.client.GetJSON(ctx, p.cfg.BaseURL+"/tiingo/crypto/prices", q, http.Header{}, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("%s: %s: %w", Tag, pair, base.ErrNoData)
	}
	bars, err := toTradeBars(resp[0].PriceData, loc, from, to)
	if err != nil {
		return nil, err
	}
	return []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, bars)}, nil
}

func (p *Provider) fetchForex(ctx context.Context, req provider.Request, q url.Values, loc *time.Location, from, to time.Time) ([]model.Series, error) {
	q.Set("resampleFreq", cryptoFreq[req.Resolution])
	var rows []priceRow
	endpoint := fmt.Sprintf("%s/tiingo/fx/%s/prices", p.cfg.BaseURL, url.PathEscape(strings.ToLower(req.Symbol.Ticker)))
	if err := p.client.GetJSON(ctx, endpoint, q, http.Header{}, &rows); err != nil {
		return nil, err
	}
	bars, err := toTradeBars(rows, loc, from, to)
	if err != nil {
		return nil, err
	}
	return []model.Series{model.NewQuoteSeries(req.Symbol, req.Resolution, model.MidQuotes(bars))}, nil
}

// fetchOption reads daily option prices. The row schema (date, OHLC, volume,
// openInterest) is inferred from sample payloads.
func (p *Provider) fetchOption(ctx context.Context, req provider.Request, q url.Values, loc *time.Location, from, to time.Time) ([]model.Series, error) {
	if req.Resolution != model.Daily {
		return nil, fmt.Errorf("%s: options %w: %s", Tag, base.ErrUnsupportedResolution, req.Resolution)
	}
	var rows []priceRow
	endpoint := fmt.Sprintf("%s/tiingo/options/%s/prices", p.cfg.BaseURL, url.PathEscape(req.Symbol.Ticker))
	if err := p.client.GetJSON(ctx, endpoint, q, http.Header{}, &rows); err != nil {
		return nil, err
	}
	var opts []model.OptionBar
	for _, r := range rows {
		b, err := rowBar(r, loc)
		if err != nil {
			return nil, err
		}
		if base.InRange(b.Time, from, to) {
			opts = append(opts, model.OptionBar{TradeBar: b, OpenInterest: r.OpenInterest})
		}
	}
	return []model.Series{{Symbol: req.Symbol, Resolution: req.Resolution, Kind: model.KindOption, Options: opts}}, nil
}

// priceRow is the shared row shape of the daily, crypto, fx and option endpoints.
type priceRow struct {
	Date         string  `json:"date"`
	Open         float64 `json:"open"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	Close        float64 `json:"close"`
	Volume       float64 `json:"volume"`
	OpenInterest float64 `json:"openInterest"`
}

// rowBar dates a row on its UTC calendar day at midnight in loc.
func rowBar(r priceRow, loc *time.Location) (model.TradeBar, error) {
	ts, err := time.Parse(time.RFC3339, r.Date)
	if err != nil {
		return model.TradeBar{}, fmt.Errorf("%s: date %q: %w", Tag, r.Date, err)
	}
	ts = ts.UTC()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc)
	return model.TradeBar{Time: day, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}, nil
}

// toTradeBars converts rows and drops those outside [from, to).
func toTradeBars(rows []priceRow, loc *time.Location, from, to time.Time) ([]model.TradeBar, error) {
	bars := make([]model.TradeBar, 0, len(rows))
	for _, r := range rows {
		b, err := rowBar(r, loc)
		if err != nil {
			return nil, err
		}
		if base.InRange(b.Time, from, to) {
			bars = append(bars, b)
		}
	}
	return bars, nil
}
