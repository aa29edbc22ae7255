// Package alphavantage fetches equity, forex and crypto series plus company
// fundamentals from the Alpha Vantage query API.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	Tag        = "alphavantage"
	DefaultRPM = 5
	DefaultURL = "https://www.alphavantage.co"
)

// Config holds the Alpha Vantage key and endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	RPM     int
}

// Provider is the Alpha Vantage adapter.
type Provider struct {
	base.Info
	cfg     Config
	client  *base.Client
	listing *listingCache
}

var (
	_ provider.DataProvider         = (*Provider)(nil)
	_ provider.FundamentalsProvider = (*Provider)(nil)
	_ provider.EarningsProvider     = (*Provider)(nil)
	_ provider.NewsProvider         = (*Provider)(nil)
)

// New creates an Alpha Vantage adapter.
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
			Resolutions: []model.Resolution{model.Minute, model.Hour, model.Daily, model.Weekly, model.Monthly},
			Classes:     []model.AssetClass{model.Equity, model.Forex, model.Crypto},
		},
		cfg:     cfg,
		client:  base.NewClient(Tag, cfg.RPM),
		listing: &listingCache{},
	}
}

// Resolve classifies "EURUSD" or "EUR/USD" as forex, "BTC-USD" as crypto and
// anything else as an equity.
func (p *Provider) Resolve(ticker string) model.Symbol {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	switch {
	case base.IsForexPair(t) && (len(t) == 6 || strings.ContainsAny(t, "/-=")):
		return p.Symbol(t, model.Forex)
	case strings.Contains(t, "-") || strings.Contains(t, "/"):
		return p.Symbol(t, model.Crypto)
	}
	return p.Symbol(t, model.Equity)
}

// query runs one function call and screens the JSON body for in-band errors.
func (p *Provider) query(ctx context.Context, function string, params url.Values) ([]byte, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("function", function)
	q.Set("apikey", p.cfg.APIKey)
	body, err := p.client.Get(ctx, p.cfg.BaseURL+"/query", q, http.Header{})
	if err != nil {
		return nil, err
	}
	if err := checkBody(function, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkBody maps the API's 200-with-message responses onto error classes:
// "Error Message" is permanent, "Note" and "Information" are rate-limit notices.
func checkBody(function string, body []byte) error {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var msg struct {
		Error       string `json:"Error Message"`
		Note        string `json:"Note"`
		Information string `json:"Information"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%s %s: parse JSON: %w", Tag, function, err)
	}
	switch {
	case msg.Error != "":
		return fmt.Errorf("%s %s: %s: %w", Tag, function, msg.Error, base.ErrPermanent)
	case msg.Note != "":
		return base.Transient(fmt.Errorf("%s %s: %s", Tag, function, msg.Note))
	case msg.Information != "":
		return base.Transient(fmt.Errorf("%s %s: %s", Tag, function, msg.Information))
	}
	return nil
}

// Fetch dispatches on the symbol class: TIME_SERIES_* for equities, FX_* for forex
// (as quote bars) and DIGITAL_CURRENCY_* for crypto.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	if err := p.CheckResolution(req.Resolution); err != nil {
		return nil, err
	}
	if err := p.CheckClass(req.Symbol.Class); err != nil {
		return nil, err
	}
	loc := req.Symbol.Location()
	from, to := base.DayRange(req.Start, req.End, loc)

	var rows []row
	var err error
	switch req.Symbol.Class {
	case model.Forex:
		rows, err = p.fetchForex(ctx, req)
	case model.Crypto:
		rows, err = p.fetchCrypto(ctx, req)
	default:
		rows, err = p.fetchEquity(ctx, req, from, to)
	}
	if err != nil {
		return nil, err
	}

	var bars []model.TradeBar
	for _, r := range rows {
		ts := r.time.In(loc)
		if req.Resolution.IsDateBased() {
			ts = time.Date(r.time.Year(), r.time.Month(), r.time.Day(), 0, 0, 0, 0, loc)
		}
		if !base.InRange(ts, from, to) {
			continue
		}
		bars = append(bars, model.TradeBar{Time: ts, Open: r.open, High: r.high, Low: r.low, Close: r.close, Volume: r.volume})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	if req.Symbol.Class == model.Forex {
		return []model.Series{model.NewQuoteSeries(req.Symbol, req.Resolution, model.MidQuotes(bars))}, nil
	}
	return []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, bars)}, nil
}

var coarseSuffix = map[model.Resolution]string{
	model.Daily:   "DAILY",
	model.Weekly:  "WEEKLY",
	model.Monthly: "MONTHLY",
}

var intradayInterval = map[model.Resolution]string{
	model.Minute: "1min",
	model.Hour:   "60min",
}

func (p *Provider) fetchEquity(ctx context.Context, req provider.Request, from, to time.Time) ([]row, error) {
	ticker := strings.ToUpper(req.Ticker())
	if req.Resolution.IsDateBased() {
		q := url.Values{"symbol": {ticker}, "outputsize": {"full"}}
		body, err := p.query(ctx, "TIME_SERIES_"+coarseSuffix[req.Resolution], q)
		if err != nil {
			return nil, err
		}
		return parseTimeSeries(body, "US/Eastern")
	}
	// intraday history is served one calendar month per call
	var rows []row
	for m := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location()); m.Before(to); m = m.AddDate(0, 1, 0) {
		q := url.Values{
			"symbol":         {ticker},
			"interval":       {intradayInterval[req.Resolution]},
			"month":          {m.Format("2006-01")},
			"outputsize":     {"full"},
			"extended_hours": {"true"},
			"adjusted":       {"false"},
		}
		body, err := p.query(ctx, "TIME_SERIES_INTRADAY", q)
		if err != nil {
			return nil, err
		}
		page, err := parseTimeSeries(body, "US/Eastern")
		if err != nil {
			return nil, err
		}
		rows = append(rows, page...)
	}
	return rows, nil
}

func (p *Provider) fetchForex(ctx context.Context, req provider.Request) ([]row, error) {
	suffix, ok := coarseSuffix[req.Resolution]
	if !ok {
		return nil, fmt.Errorf("%s: forex %w: %s", Tag, base.ErrUnsupportedResolution, req.Resolution)
	}
	from, to, ok := base.SplitPair(req.Ticker())
	if !ok {
		return nil, fmt.Errorf("%s: cannot split pair %q: %w", Tag, req.Ticker(), base.ErrPermanent)
	}
	q := url.Values{"from_symbol": {from}, "to_symbol": {to}, "outputsize": {"full"}}
	body, err := p.query(ctx, "FX_"+suffix, q)
	if err != nil {
		return nil, err
	}
	return parseTimeSeries(body, "UTC")
}

func (p *Provider) fetchCrypto(ctx context.Context, req provider.Request) ([]row, error) {
	suffix, ok := coarseSuffix[req.Resolution]
	if !ok {
		return nil, fmt.Errorf("%s: crypto %w: %s", Tag, base.ErrUnsupportedResolution, req.Resolution)
	}
	coin, market, ok := base.SplitPair(req.Ticker())
	if !ok {
		coin, market = strings.ToUpper(req.Ticker()), "USD"
	}
	q := url.Values{"symbol": {coin}, "market": {market}}
	body, err := p.query(ctx, "DIGITAL_CURRENCY_"+suffix, q)
	if err != nil {
		return nil, err
	}
	return parseTimeSeries(body, "UTC")
}

type row struct {
	time                           time.Time
	open, high, low, close, volume float64
}

var fieldPrefix = regexp.MustCompile(`^\d+[a-z]?\.\s*`)

// pickField finds a value by bare field name in keys such as "1. open",
// "1a. open (USD)" or "5. volume". Keys are tried in sorted order.
func pickField(fields map[string]string, name string) (string, bool) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		bare := strings.ToLower(fieldPrefix.ReplaceAllString(k, ""))
		if bare == name || strings.HasPrefix(bare, name+" (") {
			return fields[k], true
		}
	}
	return "", false
}

// parseTimeSeries decodes any "Time Series ..." payload. Timestamps are read in the
// zone named by the metadata, falling back to defaultTZ.
func parseTimeSeries(body []byte, defaultTZ string) ([]row, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("%s: parse JSON: %w", Tag, err)
	}
	tz := defaultTZ
	if raw, ok := top["Meta Data"]; ok {
		var meta map[string]string
		if err := json.Unmarshal(raw, &meta); err == nil {
			for k, v := range meta {
				if strings.Contains(k, "Time Zone") && v != "" {
					tz = v
				}
			}
		}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	var series map[string]map[string]string
	for k, raw := range top {
		if strings.Contains(k, "Time Series") {
			if err := json.Unmarshal(raw, &series); err != nil {
				return nil, fmt.Errorf("%s: parse %q: %w", Tag, k, err)
			}
			break
		}
	}
	if series == nil {
		return nil, fmt.Errorf("%s: %w", Tag, base.ErrNoData)
	}

	rows := make([]row, 0, len(series))
	for stamp, fields := range series {
		layout := time.DateOnly
		if len(stamp) > len(time.DateOnly) {
			layout = time.DateTime
		}
		ts, err := time.ParseInLocation(layout, stamp, loc)
		if err != nil {
			return nil, fmt.Errorf("%s: timestamp %q: %w", Tag, stamp, err)
		}
		r := row{time: ts}
		for _, f := range []struct {
			name     string
			dst      *float64
			optional bool
		}{
			{"open", &r.open, false},
			{"high", &r.high, false},
			{"low", &r.low, false},
			{"close", &r.close, false},
			{"volume", &r.volume, true},
		} {
			s, ok := pickField(fields, f.name)
			if !ok {
				if f.optional {
					continue
				}
				return nil, fmt.Errorf("%s: %s missing %s", Tag, stamp, f.name)
			}
			if *f.dst, err = base.ToFloat(s); err != nil {
				return nil, fmt.Errorf("%s: %s %s: %w", Tag, stamp, f.name, err)
			}
		}
		rows = append(rows, r)
	}
	return rows, nil
}
