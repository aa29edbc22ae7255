// Package fred fetches economic series observations from the St. Louis Fed API.
package fred

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	Tag        = "fred"
	DefaultRPM = 120
	DefaultURL = "https://api.stlouisfed.org/fred"

	missingValue = "."
)

// frequencies maps coarser resolutions to FRED's aggregation frequency. Daily asks
// for the native frequency.
var frequencies = map[model.Resolution]string{
	model.Weekly:  "w",
	model.Monthly: "m",
}

// DefaultSeries is the default universe.
var DefaultSeries = []string{"UNRATE", "CPIAUCSL", "FEDFUNDS", "GDP", "DGS10", "DGS2", "T10Y2Y", "PAYEMS"}

// Config holds the FRED key and endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	RPM     int
}

// Provider is the FRED adapter.
type Provider struct {
	base.Info
	cfg    Config
	client *base.Client
}

var (
	_ provider.DataProvider         = (*Provider)(nil)
	_ provider.FundamentalsProvider = (*Provider)(nil)
)

// New creates a FRED adapter.
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
			Classes:     []model.AssetClass{model.Economic},
		},
		cfg:    cfg,
		client: base.NewClient(Tag, cfg.RPM),
	}
}

// Resolve files every series id as an economic symbol.
func (p *Provider) Resolve(ticker string) model.Symbol {
	return p.Symbol(ticker, model.Economic)
}

func (p *Provider) query(seriesID string) url.Values {
	q := url.Values{}
	q.Set("series_id", strings.ToUpper(seriesID))
	q.Set("api_key", p.cfg.APIKey)
	q.Set("file_type", "json")
	return q
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// Fetch returns observations as economic bars: the scalar is replicated into open,
// high, low and close with zero volume. Missing observations (".") are skipped.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	if err := p.CheckResolution(req.Resolution); err != nil {
		return nil, err
	}
	q := p.query(req.Ticker())
	q.Set("observation_start", req.Start.Format(time.DateOnly))
	q.Set("observation_end", req.End.Format(time.DateOnly))
	if f, ok := frequencies[req.Resolution]; ok {
		q.Set("frequency", f)
	}
	var resp struct {
		Observations []observation `json:"observations"`
	}
	if err := p.client.GetJSON(ctx, p.cfg.BaseURL+"/series/observations", q, http.Header{}, &resp); err != nil {
		return nil, err
	}

	loc := req.Symbol.Location()
	bars := make([]model.TradeBar, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		if o.Value == missingValue || o.Value == "" {
			continue
		}
		day, err := time.ParseInLocation(time.DateOnly, o.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("%s: observation date %q: %w", Tag, o.Date, err)
		}
		v, err := base.ToFloat(o.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: observation %s: %w", Tag, o.Date, err)
		}
		bars = append(bars, model.TradeBar{Time: day, Open: v, High: v, Low: v, Close: v})
	}
	return []model.Series{{Symbol: req.Symbol, Resolution: req.Resolution, Kind: model.KindEconomic, Trades: bars}}, nil
}

// FetchFundamentals returns the series metadata (title, units, frequency, notes).
func (p *Provider) FetchFundamentals(ctx context.Context, sym model.Symbol) ([]model.Document, error) {
	body, err := p.client.Get(ctx, p.cfg.BaseURL+"/series", p.query(sym.Ticker), http.Header{})
	if err != nil {
		return nil, err
	}
	doc, err := base.NewDocument(sym, "fundamentals", "series_info", body)
	if err != nil {
		return nil, err
	}
	return []model.Document{doc}, nil
}
