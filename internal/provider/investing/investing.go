// Package investing fetches index and CFD history from the Investing.com financial
// data API for a fixed table of instrument ids.
package investing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	Tag        = "investing"
	DefaultRPM = 20
	DefaultURL = "https://api.investing.com"
)

// Instrument is an Investing.com pair id and the class it is filed under.
type Instrument struct {
	ID    int
	Class model.AssetClass
}

// Instruments is the built-in id table. Tickers outside it are not fetched.
var Instruments = map[string]Instrument{
	"SPX":    {166, model.Index},
	"DJI":    {169, model.Index},
	"IXIC":   {14958, model.Index},
	"RUT":    {170, model.Index},
	"VIX":    {44336, model.Index},
	"FTSE":   {27, model.Index},
	"DAX":    {172, model.Index},
	"CAC40":  {167, model.Index},
	"N225":   {178, model.Index},
	"HSI":    {179, model.Index},
	"NIFTY":  {17940, model.Index},
	"XAUUSD": {68, model.CFD},
	"XAGUSD": {69, model.CFD},
	"WTI":    {8849, model.CFD},
	"BRENT":  {8833, model.CFD},
	"NATGAS": {8862, model.CFD},
	"COPPER": {8831, model.CFD},
}

var timeFrames = map[model.Resolution]string{
	model.Daily:   "Daily",
	model.Weekly:  "Weekly",
	model.Monthly: "Monthly",
}

// Config holds the Investing.com endpoint.
type Config struct {
	BaseURL string
	RPM     int
}

// Provider is the Investing.com adapter.
type Provider struct {
	base.Info
	cfg    Config
	client *base.Client
}

var _ provider.DataProvider = (*Provider)(nil)

// New creates an Investing.com adapter.
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
			Classes:     []model.AssetClass{model.Index, model.CFD},
		},
		cfg:    cfg,
		client: base.NewClient(Tag, cfg.RPM, base.WithHeader("domain-id", "www")),
	}
}

// Resolve looks the ticker up in the instrument table; unknown tickers are indices.
func (p *Provider) Resolve(ticker string) model.Symbol {
	sym := p.Symbol(ticker, model.Index)
	if in, ok := Instruments[sym.Ticker]; ok {
		sym.Class = in.Class
	}
	return sym
}

type historicalRow struct {
	RowDateTimestamp string  `json:"rowDateTimestamp"`
	LastClose        string  `json:"last_close"`
	LastOpen         string  `json:"last_open"`
	LastMax          string  `json:"last_max"`
	LastMin          string  `json:"last_min"`
	LastCloseRaw     float64 `json:"last_closeRaw"`
	LastOpenRaw      float64 `json:"last_openRaw"`
	LastMaxRaw       float64 `json:"last_maxRaw"`
	LastMinRaw       float64 `json:"last_minRaw"`
	VolumeRaw        float64 `json:"volumeRaw"`
}

func pick(raw float64, text string) (float64, error) {
	if raw != 0 || text == "" {
		return raw, nil
	}
	return base.ToFloat(text)
}

// Fetch returns history for table instruments. Tickers without an id return no data.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	if err := p.CheckResolution(req.Resolution); err != nil {
		return nil, err
	}
	in, ok := Instruments[req.Symbol.Ticker]
	if !ok {
		p.client.Logger().Warn("no instrument id, skipping", "ticker", req.Symbol.Ticker)
		return nil, nil
	}
	q := url.Values{}
	q.Set("start-date", req.Start.Format(time.DateOnly))
	q.Set("end-date", req.End.Format(time.DateOnly))
	q.Set("time-frame", timeFrames[req.Resolution])
	q.Set("add-missing-rows", "false")
	var resp struct {
		Data []historicalRow `json:"data"`
	}
	endpoint := p.cfg.BaseURL + "/api/financialdata/historical/" + strconv.Itoa(in.ID)
	if err := p.client.GetJSON(ctx, endpoint, q, http.Header{}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%s: %s: %w", Tag, req.Symbol.Ticker, base.ErrNoData)
	}

	loc := req.Symbol.Location()
	bars := make([]model.TradeBar, 0, len(resp.Data))
	for _, r := range resp.Data {
		ts, err := time.Parse(time.RFC3339, r.RowDateTimestamp)
		if err != nil {
			return nil, fmt.Errorf("%s: row date %q: %w", Tag, r.RowDateTimestamp, err)
		}
		b := model.TradeBar{Time: time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc), Volume: r.VolumeRaw}
		for _, f := range []struct {
			dst  *float64
			raw  float64
			text string
		}{
			{&b.Open, r.LastOpenRaw, r.LastOpen},
			{&b.High, r.LastMaxRaw, r.LastMax},
			{&b.Low, r.LastMinRaw, r.LastMin},
			{&b.Close, r.LastCloseRaw, r.LastClose},
		} {
			if *f.dst, err = pick(f.raw, strings.TrimSpace(f.text)); err != nil {
				return nil, fmt.Errorf("%s: %s: %w", Tag, r.RowDateTimestamp, err)
			}
		}
		bars = append(bars, b)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, bars)}, nil
}
