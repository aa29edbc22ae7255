// Package yahoo fetches chart history and company documents from Yahoo Finance.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
	"lean-data/internal/ratelimit"
)

const (
	Tag        = "yahoo"
	DefaultRPM = 60
	DefaultURL = "https://query1.finance.yahoo.com"

	retryAttempts    = 3
	defaultRetryBase = 2 * time.Second
)

var intervals = map[model.Resolution]string{
	model.Minute:  "1m",
	model.Hour:    "60m",
	model.Daily:   "1d",
	model.Weekly:  "1wk",
	model.Monthly: "1mo",
}

var bondTickers = map[string]bool{"^TNX": true, "^IRX": true, "^FVX": true, "^TYX": true}

// Config holds the Yahoo endpoint. No credentials are needed.
type Config struct {
	BaseURL   string
	RPM       int
	RetryBase time.Duration
}

// Provider is the Yahoo Finance adapter.
type Provider struct {
	base.Info
	cfg    Config
	client *base.Client

	crumbMu sync.Mutex
	crumb   *string
}

var (
	_ provider.DataProvider         = (*Provider)(nil)
	_ provider.FundamentalsProvider = (*Provider)(nil)
	_ provider.EarningsProvider     = (*Provider)(nil)
	_ provider.NewsProvider         = (*Provider)(nil)
	_ provider.OptionChainProvider  = (*Provider)(nil)
)

// New creates a Yahoo adapter with a cookie-backed session.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.RPM == 0 {
		cfg.RPM = DefaultRPM
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = defaultRetryBase
	}
	return &Provider{
		Info: base.Info{
			Tag:         Tag,
			RPM:         cfg.RPM,
			Resolutions: []model.Resolution{model.Minute, model.Hour, model.Daily, model.Weekly, model.Monthly},
			Classes:     []model.AssetClass{model.Equity, model.Forex, model.Crypto, model.Index, model.Bond},
		},
		cfg:    cfg,
		client: base.NewClient(Tag, cfg.RPM, base.WithCookieJar()),
	}
}

// Resolve classifies Yahoo spellings: "EURUSD=X" forex, "^TNX" bond yields, other
// "^" tickers indices, "BTC-USD" crypto, everything else equity.
func (p *Provider) Resolve(ticker string) model.Symbol {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	switch {
	case strings.HasSuffix(t, "=X"):
		return p.Symbol(t, model.Forex)
	case bondTickers[t]:
		return p.Symbol(t, model.Bond)
	case strings.HasPrefix(t, "^"):
		return p.Symbol(t, model.Index)
	case strings.HasSuffix(t, "-USD"), strings.HasSuffix(t, "-USDT"):
		return p.Symbol(t, model.Crypto)
	}
	return p.Symbol(t, model.Equity)
}

// VendorTicker rebuilds the Yahoo spelling from a canonical symbol when the
// request does not carry one.
func VendorTicker(req provider.Request) string {
	if req.VendorTicker != "" {
		return strings.ToUpper(req.VendorTicker)
	}
	t := req.Symbol.Ticker
	switch req.Symbol.Class {
	case model.Forex:
		return t + "=X"
	case model.Index, model.Bond:
		return "^" + t
	case model.Crypto:
		if b, q, ok := base.SplitPair(t); ok {
			return b + "-" + q
		}
	}
	return t
}

// get issues a GET with up to three attempts and linear backoff on transient errors.
func (p *Provider) get(ctx context.Context, rawURL string, q url.Values) ([]byte, error) {
	var body []byte
	err := ratelimit.Retry(ctx, retryAttempts, p.cfg.RetryBase, func(attempt int) error {
		b, err := p.client.Get(ctx, rawURL, q, http.Header{"Accept": {"application/json"}})
		if err != nil {
			if !errors.Is(err, base.ErrTransient) {
				return fmt.Errorf("%w: %w", ratelimit.ErrPermanent, err)
			}
			p.client.Logger().Debug("attempt failed", "attempt", attempt, "error", err)
			return err
		}
		body = b
		return nil
	})
	return body, err
}

// Fetch returns one series from the v8 chart API. Equities, indices, bonds and
// crypto come back as trade bars; forex as quote bars with bid = ask.
// Transient failures that survive every retry are logged and yield no data.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	interval, ok := intervals[req.Resolution]
	if !ok {
		return nil, p.CheckResolution(req.Resolution)
	}
	ticker := VendorTicker(req)
	from, to := base.DayRange(req.Start, req.End, req.Symbol.Location())
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", interval)
	q.Set("includePrePost", "false")
	q.Set("events", "div,splits")

	body, err := p.get(ctx, p.cfg.BaseURL+"/v8/finance/chart/"+url.PathEscape(ticker), q)
	if err != nil {
		if errors.Is(err, base.ErrTransient) {
			p.client.Logger().Error("retries exhausted", "ticker", ticker, "attempts", retryAttempts, "error", err)
			return nil, nil
		}
		return nil, err
	}
	bars, err := parseChart(body, req.Resolution, req.Symbol.Location())
	if err != nil {
		return nil, err
	}
	var kept []model.TradeBar
	for _, b := range bars {
		if base.InRange(b.Time, from, to) {
			kept = append(kept, b)
		}
	}

	if req.Symbol.Class == model.Forex {
		return []model.Series{model.NewQuoteSeries(req.Symbol, req.Resolution, model.MidQuotes(kept))}, nil
	}
	return []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, kept)}, nil
}
