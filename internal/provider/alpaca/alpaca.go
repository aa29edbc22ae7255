// Package alpaca fetches US equity bars and quotes from the Alpaca market data v2 API.
package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	Tag        = "alpaca"
	DefaultRPM = 200
	DefaultURL = "https://data.alpaca.markets"
	pageLimit  = 10000
)

var timeframes = map[model.Resolution]string{
	model.Minute:  "1Min",
	model.Hour:    "1Hour",
	model.Daily:   "1Day",
	model.Weekly:  "1Week",
	model.Monthly: "1Month",
}

// Config holds Alpaca credentials and endpoint.
type Config struct {
	KeyID   string
	Secret  string
	BaseURL string
	Feed    string // iex (free) or sip
	RPM     int
}

// Provider is the Alpaca adapter.
type Provider struct {
	base.Info
	cfg    Config
	client *base.Client
}

var _ provider.DataProvider = (*Provider)(nil)

// New creates an Alpaca adapter.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.Feed == "" {
		cfg.Feed = "iex"
	}
	if cfg.RPM == 0 {
		cfg.RPM = DefaultRPM
	}
	return &Provider{
		Info: base.Info{
			Tag:         Tag,
			RPM:         cfg.RPM,
			Resolutions: []model.Resolution{model.Minute, model.Hour, model.Daily, model.Weekly, model.Monthly},
			Classes:     []model.AssetClass{model.Equity},
		},
		cfg: cfg,
		client: base.NewClient(Tag, cfg.RPM,
			base.WithHeader("APCA-API-KEY-ID", cfg.KeyID),
			base.WithHeader("APCA-API-SECRET-KEY", cfg.Secret)),
	}
}

// Resolve maps a ticker to an Alpaca equity symbol.
func (p *Provider) Resolve(ticker string) model.Symbol {
	return p.Symbol(ticker, model.Equity)
}

type barJSON struct {
	T string  `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

type barsResponse struct {
	Bars          []barJSON `json:"bars"`
	NextPageToken *string   `json:"next_page_token"`
}

type quoteJSON struct {
	T  string  `json:"t"`
	BP float64 `json:"bp"`
	BS float64 `json:"bs"`
	AP float64 `json:"ap"`
	AS float64 `json:"as"`
}

type quotesResponse struct {
	Quotes        []quoteJSON `json:"quotes"`
	NextPageToken *string     `json:"next_page_token"`
}

// Fetch returns trade bars, plus quote bars for intraday requests. A failed
// quote request still returns the trade bars.
// Vendor timestamps are UTC and are re-expressed in US/Eastern.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	if err := p.CheckResolution(req.Resolution); err != nil {
		return nil, err
	}
	loc := req.Symbol.Location()
	from, to := base.DayRange(req.Start, req.End, loc)

	trades, err := p.fetchBars(ctx, req, loc, from, to)
	if err != nil {
		return nil, err
	}
	out := []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, trades)}
	if req.Resolution.IsIntraday() {
		ticks, err := p.fetchQuotes(ctx, req, from, to)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			p.client.Logger().Warn("quotes unavailable, keeping trades", "ticker", req.Ticker(), "error", err)
			return out, nil
		}
		quotes := model.AggregateQuotes(ticks, req.Resolution, loc)
		out = append(out, model.NewQuoteSeries(req.Symbol, req.Resolution, quotes))
	}
	return out, nil
}

func (p *Provider) header() http.Header {
	return http.Header{"Accept": []string{"application/json"}}
}

func (p *Provider) fetchBars(ctx context.Context, req provider.Request, loc *time.Location, from, to time.Time) ([]model.TradeBar, error) {
	endpoint := fmt.Sprintf("%s/v2/stocks/%s/bars", p.cfg.BaseURL, url.PathEscape(req.Ticker()))
	var bars []model.TradeBar
	token := ""
	for {
		q := url.Values{}
		q.Set("timeframe", timeframes[req.Resolution])
		q.Set("start", from.UTC().Format(time.RFC3339))
		q.Set("end", to.UTC().Format(time.RFC3339))
		q.Set("limit", strconv.Itoa(pageLimit))
		q.Set("adjustment", "raw")
		q.Set("feed", p.cfg.Feed)
		if token != "" {
			q.Set("page_token", token)
		}
		var resp barsResponse
		if err := p.client.GetJSON(ctx, endpoint, q, p.header(), &resp); err != nil {
			return nil, err
		}
		for _, b := range resp.Bars {
			ts, err := time.Parse(time.RFC3339, b.T)
			if err != nil {
				return nil, fmt.Errorf("%s: bar time %q: %w", Tag, b.T, err)
			}
			ts = ts.In(loc)
			if !req.Resolution.IsIntraday() {
				ts = model.BucketStart(ts, req.Resolution, loc)
			}
			bars = append(bars, model.TradeBar{Time: ts, Open: b.O, High: b.H, Low: b.L, Close: b.C, Volume: b.V})
		}
		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			break
		}
		token = *resp.NextPageToken
	}
	return bars, nil
}

func (p *Provider) fetchQuotes(ctx context.Context, req provider.Request, from, to time.Time) ([]model.QuoteTick, error) {
	endpoint := fmt.Sprintf("%s/v2/stocks/%s/quotes", p.cfg.BaseURL, url.PathEscape(req.Ticker()))
	var ticks []model.QuoteTick
	token := ""
	for {
		q := url.Values{}
		q.Set("start", from.UTC().Format(time.RFC3339))
		q.Set("end", to.UTC().Format(time.RFC3339))
		q.Set("limit", strconv.Itoa(pageLimit))
		q.Set("feed", p.cfg.Feed)
		if token != "" {
			q.Set("page_token", token)
		}
		var resp quotesResponse
		if err := p.client.GetJSON(ctx, endpoint, q, p.header(), &resp); err != nil {
			return nil, err
		}
		for _, qt := range resp.Quotes {
			ts, err := time.Parse(time.RFC3339Nano, qt.T)
			if err != nil {
				return nil, fmt.Errorf("%s: quote time %q: %w", Tag, qt.T, err)
			}
			ticks = append(ticks, model.QuoteTick{Time: ts, Bid: qt.BP, Ask: qt.AP, BidSize: qt.BS, AskSize: qt.AS})
		}
		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			break
		}
		token = *resp.NextPageToken
	}
	return ticks, nil
}
