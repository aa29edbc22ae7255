// Package stooq downloads daily, weekly and monthly history from the stooq.com CSV
// endpoint.
package stooq

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	Tag        = "stooq"
	DefaultRPM = 30
	DefaultURL = "https://stooq.com"
)

var intervals = map[model.Resolution]string{
	model.Daily:   "d",
	model.Weekly:  "w",
	model.Monthly: "m",
}

// Config holds the Stooq endpoint.
type Config struct {
	BaseURL string
	RPM     int
}

// Provider is the Stooq adapter.
type Provider struct {
	base.Info
	cfg    Config
	client *base.Client
}

var _ provider.DataProvider = (*Provider)(nil)

// New creates a Stooq adapter.
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
			Classes:     []model.AssetClass{model.Equity, model.Index, model.Forex},
		},
		cfg:    cfg,
		client: base.NewClient(Tag, cfg.RPM),
	}
}

// Resolve: "^SPX" is an index, "AAPL.US" an equity (suffix dropped), a fiat pair
// forex, anything else a US equity.
func (p *Provider) Resolve(ticker string) model.Symbol {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	switch {
	case strings.HasPrefix(t, "^"):
		return p.Symbol(t, model.Index)
	case strings.HasSuffix(t, ".US"):
		return p.Symbol(strings.TrimSuffix(t, ".US"), model.Equity)
	case len(t) == 6 && base.IsForexPair(t):
		return p.Symbol(t, model.Forex)
	}
	return p.Symbol(t, model.Equity)
}

// VendorTicker builds Stooq's lower-case spelling: "^spx", "aapl.us", "eurusd".
func VendorTicker(req provider.Request) string {
	if req.VendorTicker != "" {
		t := strings.ToLower(req.VendorTicker)
		if req.Symbol.Class == model.Equity && !strings.Contains(t, ".") {
			t += ".us"
		}
		return t
	}
	t := strings.ToLower(req.Symbol.Ticker)
	switch req.Symbol.Class {
	case model.Index:
		return "^" + t
	case model.Equity:
		return t + ".us"
	}
	return t
}

// Row is one CSV record. Volume is absent for indices and forex.
type Row struct {
	Date   string  `csv:"Date"`
	Open   float64 `csv:"Open"`
	High   float64 `csv:"High"`
	Low    float64 `csv:"Low"`
	Close  float64 `csv:"Close"`
	Volume float64 `csv:"Volume"`
}

// ParseCSV decodes the download body. The endpoint answers "No data" in plain text
// for unknown symbols or empty ranges.
func ParseCSV(body []byte) ([]Row, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.EqualFold(trimmed, []byte("No data")) {
		return nil, fmt.Errorf("%s: %w", Tag, base.ErrNoData)
	}
	var rows []Row
	if err := gocsv.UnmarshalBytes(trimmed, &rows); err != nil {
		return nil, fmt.Errorf("%s: parse CSV: %w", Tag, err)
	}
	return rows, nil
}

// Fetch downloads the CSV for the request range.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	interval, ok := intervals[req.Resolution]
	if !ok {
		return nil, p.CheckResolution(req.Resolution)
	}
	q := url.Values{}
	q.Set("s", VendorTicker(req))
	q.Set("d1", req.Start.Format("20060102"))
	q.Set("d2", req.End.Format("20060102"))
	q.Set("i", interval)
	body, err := p.client.Get(ctx, p.cfg.BaseURL+"/q/d/l/", q, http.Header{})
	if err != nil {
		return nil, err
	}
	rows, err := ParseCSV(body)
	if err != nil {
		return nil, err
	}
	loc := req.Symbol.Location()
	bars := make([]model.TradeBar, 0, len(rows))
	for _, r := range rows {
		day, err := time.ParseInLocation(time.DateOnly, r.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("%s: date %q: %w", Tag, r.Date, err)
		}
		bars = append(bars, model.TradeBar{Time: day, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if req.Symbol.Class == model.Forex {
		return []model.Series{model.NewQuoteSeries(req.Symbol, req.Resolution, model.MidQuotes(bars))}, nil
	}
	return []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, bars)}, nil
}
