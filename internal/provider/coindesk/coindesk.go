// Package coindesk fetches the CoinDesk CADLI reference-rate index history.
package coindesk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	Tag        = "coindesk"
	DefaultRPM = 30
	DefaultURL = "https://data-api.coindesk.com"
	DefaultMkt = "cadli"
	pageLimit  = 2000
)

var paths = map[model.Resolution]string{
	model.Minute: "minutes",
	model.Hour:   "hours",
	model.Daily:  "days",
}

// Config holds the CoinDesk key and endpoint.
type Config struct {
	APIKey  string
	Market  string
	BaseURL string
	RPM     int
}

// Provider is the CoinDesk adapter.
type Provider struct {
	base.Info
	cfg    Config
	client *base.Client
}

var _ provider.DataProvider = (*Provider)(nil)

// New creates a CoinDesk adapter.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.Market == "" {
		cfg.Market = DefaultMkt
	}
	if cfg.RPM == 0 {
		cfg.RPM = DefaultRPM
	}
	return &Provider{
		Info: base.Info{
			Tag:         Tag,
			RPM:         cfg.RPM,
			Resolutions: []model.Resolution{model.Minute, model.Hour, model.Daily},
			Classes:     []model.AssetClass{model.Crypto},
		},
		cfg:    cfg,
		client: base.NewClient(Tag, cfg.RPM),
	}
}

// Resolve files the pair as a crypto symbol.
func (p *Provider) Resolve(ticker string) model.Symbol {
	return p.Symbol(ticker, model.Crypto)
}

// instrument returns the index instrument spelling "BTC-USD".
func instrument(req provider.Request) string {
	if b, q, ok := base.SplitPair(req.Ticker()); ok {
		return b + "-" + q
	}
	return req.Ticker() + "-USD"
}

type historyEntry struct {
	Timestamp int64   `json:"TIMESTAMP"`
	Open      float64 `json:"OPEN"`
	High      float64 `json:"HIGH"`
	Low       float64 `json:"LOW"`
	Close     float64 `json:"CLOSE"`
	Volume    float64 `json:"VOLUME"`
}

type historyResponse struct {
	Data []historyEntry `json:"Data"`
	Err  struct {
		Type    int    `json:"type"`
		Message string `json:"message"`
	} `json:"Err"`
}

// Fetch pages backwards from the end of the range with to_ts until the start is
// covered or the index has no older entries.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	path, ok := paths[req.Resolution]
	if !ok {
		return nil, p.CheckResolution(req.Resolution)
	}
	from, to := base.DayRange(req.Start, req.End, time.UTC)
	inst := instrument(req)
	toTs := to.Unix() - 1

	var bars []model.TradeBar
	for {
		q := url.Values{}
		q.Set("market", p.cfg.Market)
		q.Set("instrument", inst)
		q.Set("limit", strconv.Itoa(pageLimit))
		q.Set("to_ts", strconv.FormatInt(toTs, 10))
		q.Set("api_key", p.cfg.APIKey)
		var resp historyResponse
		if err := p.client.GetJSON(ctx, p.cfg.BaseURL+"/index/cc/v1/historical/"+path, q, http.Header{}, &resp); err != nil {
			return nil, err
		}
		if resp.Err.Message != "" {
			return nil, fmt.Errorf("%s: %s: %w", Tag, resp.Err.Message, base.ErrPermanent)
		}
		if len(resp.Data) == 0 {
			break
		}
		oldest := resp.Data[0].Timestamp
		for _, e := range resp.Data {
			ts := time.Unix(e.Timestamp, 0).UTC()
			if e.Timestamp < oldest {
				oldest = e.Timestamp
			}
			if base.InRange(ts, from, to) {
				bars = append(bars, model.TradeBar{Time: ts, Open: e.Open, High: e.High, Low: e.Low, Close: e.Close, Volume: e.Volume})
			}
		}
		if oldest <= from.Unix() || len(resp.Data) < pageLimit {
			break
		}
		toTs = oldest - 1
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %s: %w", Tag, inst, base.ErrNoData)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, bars)}, nil
}
