// Package quandl fetches time-series datasets from the Nasdaq Data Link (Quandl) API.
package quandl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	Tag        = "quandl"
	DefaultRPM = 300
	DefaultURL = "https://data.nasdaq.com/api/v3"
)

var collapse = map[model.Resolution]string{
	model.Daily:   "daily",
	model.Weekly:  "weekly",
	model.Monthly: "monthly",
}

// closeColumns are tried in order when a dataset has no full OHLC set.
var closeColumns = []string{"close", "settle", "last", "value", "price", "adj. close", "usd (pm)", "usd (am)"}

// Config holds the Nasdaq Data Link key and endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	RPM     int
}

// Provider is the Quandl adapter.
type Provider struct {
	base.Info
	cfg    Config
	client *base.Client
}

var _ provider.DataProvider = (*Provider)(nil)

// New creates a Quandl adapter.
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
			Classes:     []model.AssetClass{model.Equity, model.Economic, model.Index},
		},
		cfg:    cfg,
		client: base.NewClient(Tag, cfg.RPM),
	}
}

// SplitCode splits "WIKI/AAPL" into database and dataset codes.
func SplitCode(ticker string) (string, string, bool) {
	db, code, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(ticker)), "/")
	if !ok || db == "" || code == "" {
		return "", "", false
	}
	return db, code, true
}

// Resolve maps "DB/CODE" to the symbol DB_CODE. WIKI and EOD datasets are
// equities, FRED datasets economic series, everything else an index.
func (p *Provider) Resolve(ticker string) model.Symbol {
	db, code, ok := SplitCode(ticker)
	if !ok {
		return p.Symbol(ticker, model.Index)
	}
	class := model.Index
	switch db {
	case "WIKI", "EOD":
		class = model.Equity
	case "FRED":
		class = model.Economic
	}
	return model.Symbol{Ticker: db + "_" + code, Class: class, Venue: Tag}
}

// vendorCode recovers DB/CODE from the request.
func vendorCode(req provider.Request) (string, string, bool) {
	if db, code, ok := SplitCode(req.Ticker()); ok {
		return db, code, true
	}
	db, code, ok := strings.Cut(req.Symbol.Ticker, "_")
	return db, code, ok && db != "" && code != ""
}

type datasetData struct {
	DatasetData struct {
		ColumnNames []string `json:"column_names"`
		Data        [][]any  `json:"data"`
	} `json:"dataset_data"`
}

// Fetch returns one series mapped through the column heuristics in mapColumns.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	if err := p.CheckResolution(req.Resolution); err != nil {
		return nil, err
	}
	db, code, ok := vendorCode(req)
	if !ok {
		return nil, fmt.Errorf("%s: %q is not DATABASE/CODE: %w", Tag, req.Ticker(), base.ErrPermanent)
	}
	q := url.Values{}
	q.Set("api_key", p.cfg.APIKey)
	q.Set("start_date", req.Start.Format(time.DateOnly))
	q.Set("end_date", req.End.Format(time.DateOnly))
	q.Set("order", "asc")
	q.Set("collapse", collapse[req.Resolution])
	endpoint := fmt.Sprintf("%s/datasets/%s/%s/data.json", p.cfg.BaseURL, url.PathEscape(db), url.PathEscape(code))
	var resp datasetData
	if err := p.client.GetJSON(ctx, endpoint, q, http.Header{}, &resp); err != nil {
		return nil, err
	}
	bars, err := mapColumns(resp.DatasetData.ColumnNames, resp.DatasetData.Data, req.Symbol.Location())
	if err != nil {
		return nil, err
	}
	kind := model.KindTrade
	if req.Symbol.Class == model.Economic {
		kind = model.KindEconomic
	}
	return []model.Series{{Symbol: req.Symbol, Resolution: req.Resolution, Kind: kind, Trades: bars}}, nil
}

// columnMap holds column indexes; -1 means absent.
type columnMap struct {
	date, open, high, low, close, volume int
}

// mapColumns picks OHLC when the dataset has all four, else a close-like column
// replicated into OHLC, else the first numeric column. Volume defaults to 0.
func mapColumns(names []string, rows [][]any, loc *time.Location) ([]model.TradeBar, error) {
	idx := map[string]int{}
	for i, n := range names {
		idx[strings.ToLower(strings.TrimSpace(n))] = i
	}
	find := func(candidates ...string) int {
		for _, c := range candidates {
			if i, ok := idx[c]; ok {
				return i
			}
		}
		return -1
	}
	cm := columnMap{date: 0, open: find("open"), high: find("high"), low: find("low"), close: find(closeColumns...), volume: find("volume", "total trade quantity", "shares traded")}
	if cm.open < 0 || cm.high < 0 || cm.low < 0 || cm.close < 0 {
		cm.open, cm.high, cm.low = -1, -1, -1
		if cm.close < 0 {
			cm.close = firstNumericColumn(rows)
		}
		if cm.close < 0 {
			return nil, fmt.Errorf("%s: no numeric column in %v: %w", Tag, names, base.ErrNoData)
		}
	}

	bars := make([]model.TradeBar, 0, len(rows))
	for _, r := range rows {
		if len(r) == 0 {
			continue
		}
		ds, _ := r[cm.date].(string)
		day, err := time.ParseInLocation(time.DateOnly, ds, loc)
		if err != nil {
			return nil, fmt.Errorf("%s: date %v: %w", Tag, r[cm.date], err)
		}
		get := func(i int) (float64, bool) {
			if i < 0 || i >= len(r) || r[i] == nil {
				return 0, false
			}
			v, err := base.ToFloat(r[i])
			return v, err == nil
		}
		c, ok := get(cm.close)
		if !ok {
			continue
		}
		b := model.TradeBar{Time: day, Open: c, High: c, Low: c, Close: c}
		if cm.open >= 0 {
			o, ok1 := get(cm.open)
			h, ok2 := get(cm.high)
			l, ok3 := get(cm.low)
			if !(ok1 && ok2 && ok3) {
				continue
			}
			b.Open, b.High, b.Low = o, h, l
		}
		b.Volume, _ = get(cm.volume)
		bars = append(bars, b)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// firstNumericColumn returns the first non-date column holding a number in any row.
func firstNumericColumn(rows [][]any) int {
	best := -1
	for _, r := range rows {
		for i := 1; i < len(r); i++ {
			if _, ok := r[i].(float64); ok && (best < 0 || i < best) {
				best = i
				break
			}
		}
	}
	return best
}
