// Package binance fetches spot klines from the Binance REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	Tag        = "binance"
	DefaultRPM = 1200
	DefaultURL = "https://api.binance.com"
	klineLimit = 1000
)

// intervals maps resolutions to kline interval tokens.
var intervals = map[model.Resolution]string{
	model.Second:  "1s",
	model.Minute:  "1m",
	model.Hour:    "1h",
	model.Daily:   "1d",
	model.Weekly:  "1w",
	model.Monthly: "1M",
}

// Interval returns the kline token for r.
func Interval(r model.Resolution) (string, bool) {
	s, ok := intervals[r]
	return s, ok
}

// Config holds the optional API key and endpoint. Klines are public; the key only
// raises the weight budget.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	RPM       int
}

// Provider is the Binance adapter.
type Provider struct {
	base.Info
	cfg    Config
	client *base.Client
}

var _ provider.DataProvider = (*Provider)(nil)

// New creates a Binance adapter.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.RPM == 0 {
		cfg.RPM = DefaultRPM
	}
	var opts []base.Option
	if cfg.APIKey != "" {
		opts = append(opts, base.WithHeader("X-MBX-APIKEY", cfg.APIKey))
	}
	return &Provider{
		Info: base.Info{
			Tag:         Tag,
			RPM:         cfg.RPM,
			Resolutions: []model.Resolution{model.Second, model.Minute, model.Hour, model.Daily, model.Weekly, model.Monthly},
			Classes:     []model.AssetClass{model.Crypto},
		},
		cfg:    cfg,
		client: base.NewClient(Tag, cfg.RPM, opts...),
	}
}

// Resolve maps "BTC-USDT", "btc/usdt" or "BTCUSDT" to the exchange pair.
func (p *Provider) Resolve(ticker string) model.Symbol {
	return p.Symbol(ticker, model.Crypto)
}

// Fetch pages through klines between the request dates, expressed as UTC
// millisecond timestamps.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	interval, ok := Interval(req.Resolution)
	if !ok {
		return nil, p.CheckResolution(req.Resolution)
	}
	from, to := base.DayRange(req.Start, req.End, time.UTC)
	startMs, endMs := from.UnixMilli(), to.UnixMilli()-1
	pair := strings.ToUpper(req.Symbol.Ticker)

	var bars []model.TradeBar
	for startMs <= endMs {
		q := url.Values{}
		q.Set("symbol", pair)
		q.Set("interval", interval)
		q.Set("startTime", strconv.FormatInt(startMs, 10))
		q.Set("endTime", strconv.FormatInt(endMs, 10))
		q.Set("limit", strconv.Itoa(klineLimit))
		body, err := p.client.Get(ctx, p.cfg.BaseURL+"/api/v3/klines", q, http.Header{})
		if err != nil {
			return nil, err
		}
		page, lastOpen, err := parseKlines(body)
		if err != nil {
			return nil, err
		}
		bars = append(bars, page...)
		if len(page) < klineLimit {
			break
		}
		startMs = lastOpen + 1
	}
	return []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, bars)}, nil
}

// parseKlines decodes [[open_ms, "o", "h", "l", "c", "v", close_ms, ...], ...].
func parseKlines(body []byte) ([]model.TradeBar, int64, error) {
	var raw [][]any
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, 0, fmt.Errorf("%s: parse klines: %w", Tag, err)
	}
	bars := make([]model.TradeBar, 0, len(raw))
	var last int64
	for i, k := range raw {
		if len(k) < 6 {
			return nil, 0, fmt.Errorf("%s: kline %d has %d fields", Tag, i, len(k))
		}
		openMs, err := base.ToInt64(k[0])
		if err != nil {
			return nil, 0, fmt.Errorf("%s: kline %d open time: %w", Tag, i, err)
		}
		var v [5]float64
		for j := range v {
			if v[j], err = base.ToFloat(k[j+1]); err != nil {
				return nil, 0, fmt.Errorf("%s: kline %d field %d: %w", Tag, i, j+1, err)
			}
		}
		bars = append(bars, model.TradeBar{
			Time: time.UnixMilli(openMs).UTC(),
			Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4],
		})
		last = openMs
	}
	return bars, last, nil
}
