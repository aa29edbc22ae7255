// Package nseindia fetches daily equity history from the National Stock Exchange of
// India website API. The API only answers requests carrying the session cookies set
// by the home page, so the client primes a cookie jar before the first call.
package nseindia

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	Tag        = "nseindia"
	Venue      = "nse"
	DefaultRPM = 30
	DefaultURL = "https://www.nseindia.com"

	// the historical endpoint rejects spans much longer than a quarter
	chunkDays = 90
	dateParam = "02-01-2006"
)

// Nifty50 is the default universe.
var Nifty50 = []string{
	"ADANIENT", "ADANIPORTS", "APOLLOHOSP", "ASIANPAINT", "AXISBANK", "BAJAJ-AUTO", "BAJFINANCE",
	"BAJAJFINSV", "BEL", "BHARTIARTL", "BPCL", "BRITANNIA", "CIPLA", "COALINDIA", "DRREDDY",
	"EICHERMOT", "GRASIM", "HCLTECH", "HDFCBANK", "HDFCLIFE", "HEROMOTOCO", "HINDALCO", "HINDUNILVR",
	"ICICIBANK", "INDUSINDBK", "INFY", "ITC", "JSWSTEEL", "KOTAKBANK", "LT", "M&M", "MARUTI",
	"NESTLEIND", "NTPC", "ONGC", "POWERGRID", "RELIANCE", "SBILIFE", "SBIN", "SHRIRAMFIN",
	"SUNPHARMA", "TATACONSUM", "TATAMOTORS", "TATASTEEL", "TCS", "TECHM", "TITAN", "TRENT",
	"ULTRACEMCO", "WIPRO",
}

// Config holds the NSE endpoint.
type Config struct {
	BaseURL string
	RPM     int
}

// Provider is the NSE adapter.
type Provider struct {
	base.Info
	cfg    Config
	client *base.Client

	primeMu sync.Mutex
	primed  bool
}

var _ provider.DataProvider = (*Provider)(nil)

// New creates an NSE adapter.
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
			Resolutions: []model.Resolution{model.Daily},
			Classes:     []model.AssetClass{model.Equity},
		},
		cfg: cfg,
		client: base.NewClient(Tag, cfg.RPM,
			base.WithCookieJar(),
			base.WithHeader("Accept", "application/json, text/plain, */*"),
			base.WithHeader("Accept-Language", "en-US,en;q=0.9"),
			base.WithHeader("Referer", cfg.BaseURL+"/")),
	}
}

// Resolve strips a ".NS" suffix and files the symbol under the NSE venue.
func (p *Provider) Resolve(ticker string) model.Symbol {
	t := strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(ticker)), ".NS")
	sym := p.Symbol(t, model.Equity)
	sym.Venue = Venue
	return sym
}

// prime loads the home page once so the jar holds the session cookies.
func (p *Provider) prime(ctx context.Context) error {
	p.primeMu.Lock()
	defer p.primeMu.Unlock()
	if p.primed {
		return nil
	}
	if _, err := p.client.Get(ctx, p.cfg.BaseURL+"/", nil, http.Header{"Accept": {"text/html"}}); err != nil {
		return fmt.Errorf("%s: prime session: %w", Tag, err)
	}
	p.primed = true
	return nil
}

type historyRow struct {
	Symbol    string `json:"CH_SYMBOL"`
	Series    string `json:"CH_SERIES"`
	Timestamp string `json:"CH_TIMESTAMP"`
	Open      any    `json:"CH_OPENING_PRICE"`
	High      any    `json:"CH_TRADE_HIGH_PRICE"`
	Low       any    `json:"CH_TRADE_LOW_PRICE"`
	Close     any    `json:"CH_CLOSING_PRICE"`
	Volume    any    `json:"CH_TOT_TRADED_QTY"`
}

// Fetch returns daily EQ-series bars localized to Asia/Kolkata.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	if err := p.CheckResolution(req.Resolution); err != nil {
		return nil, err
	}
	if err := p.prime(ctx); err != nil {
		return nil, err
	}
	loc := req.Symbol.Location()
	ticker := strings.TrimSuffix(strings.ToUpper(req.Ticker()), ".NS")

	var bars []model.TradeBar
	start := canonDate(req.Start)
	end := canonDate(req.End)
	for cs := start; !cs.After(end); cs = cs.AddDate(0, 0, chunkDays) {
		ce := cs.AddDate(0, 0, chunkDays-1)
		if ce.After(end) {
			ce = end
		}
		q := url.Values{}
		q.Set("symbol", ticker)
		q.Set("series", `["EQ"]`)
		q.Set("from", cs.Format(dateParam))
		q.Set("to", ce.Format(dateParam))
		var resp struct {
			Data []historyRow `json:"data"`
		}
		if err := p.client.GetJSON(ctx, p.cfg.BaseURL+"/api/historical/cm/equity", q, http.Header{}, &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Data {
			b, err := r.bar(loc)
			if err != nil {
				return nil, err
			}
			bars = append(bars, b)
		}
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, bars)}, nil
}

func canonDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (r historyRow) bar(loc *time.Location) (model.TradeBar, error) {
	day, err := time.ParseInLocation(time.DateOnly, r.Timestamp, loc)
	if err != nil {
		return model.TradeBar{}, fmt.Errorf("%s: CH_TIMESTAMP %q: %w", Tag, r.Timestamp, err)
	}
	var v [5]float64
	for i, x := range []any{r.Open, r.High, r.Low, r.Close, r.Volume} {
		if v[i], err = base.ToFloat(x); err != nil {
			return model.TradeBar{}, fmt.Errorf("%s: %s field %d: %w", Tag, r.Timestamp, i, err)
		}
	}
	return model.TradeBar{Time: day, Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4]}, nil
}
