// Package databento fetches continuous futures OHLCV from the Databento historical API.
package databento

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	Tag            = "databento"
	DefaultRPM     = 60
	DefaultURL     = "https://hist.databento.com"
	DefaultDataset = "GLBX.MDP3"

	// fixed-point prices carry nine implied decimals
	priceExponent = -9
)

var schemas = map[model.Resolution]string{
	model.Second: "ohlcv-1s",
	model.Minute: "ohlcv-1m",
	model.Hour:   "ohlcv-1h",
	model.Daily:  "ohlcv-1d",
}

// Config holds the Databento key and dataset.
type Config struct {
	APIKey  string
	Dataset string
	BaseURL string
	RPM     int
}

// Provider is the Databento adapter.
type Provider struct {
	base.Info
	cfg    Config
	client *base.Client
}

var _ provider.DataProvider = (*Provider)(nil)

// New creates a Databento adapter. Authentication is HTTP basic with the key as user.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	if cfg.RPM == 0 {
		cfg.RPM = DefaultRPM
	}
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.APIKey+":"))
	return &Provider{
		Info: base.Info{
			Tag:         Tag,
			RPM:         cfg.RPM,
			Resolutions: []model.Resolution{model.Second, model.Minute, model.Hour, model.Daily},
			Classes:     []model.AssetClass{model.Future},
		},
		cfg:    cfg,
		client: base.NewClient(Tag, cfg.RPM, base.WithHeader("Authorization", auth)),
	}
}

// Resolve routes a futures root to its exchange directory.
func (p *Provider) Resolve(ticker string) model.Symbol {
	prod, _ := model.LookupFuturesProduct(ticker)
	return model.Symbol{Ticker: prod.Root, Class: model.Future, Venue: strings.ToLower(prod.Exchange)}
}

// ContinuousSymbol rewrites user spellings ("ES", "ES.FUT") to front-month continuous
// symbology ("ES.c.0"). Already continuous symbols pass through.
func ContinuousSymbol(ticker string) string {
	t := strings.TrimSpace(ticker)
	for _, roll := range []string{".c.", ".n.", ".v."} {
		if strings.Contains(t, roll) {
			return t
		}
	}
	return model.FuturesRoot(t) + ".c.0"
}

type recordHeader struct {
	TsEvent json.Number `json:"ts_event"`
}

type ohlcvRecord struct {
	Hd     recordHeader `json:"hd"`
	Open   json.Number  `json:"open"`
	High   json.Number  `json:"high"`
	Low    json.Number  `json:"low"`
	Close  json.Number  `json:"close"`
	Volume json.Number  `json:"volume"`
}

// Fetch returns one trade series from timeseries.get_range.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	schema, ok := schemas[req.Resolution]
	if !ok {
		return nil, p.CheckResolution(req.Resolution)
	}
	from, to := base.DayRange(req.Start, req.End, time.UTC)
	form := url.Values{}
	form.Set("dataset", p.cfg.Dataset)
	form.Set("symbols", ContinuousSymbol(req.Ticker()))
	form.Set("stype_in", "continuous")
	form.Set("schema", schema)
	form.Set("start", from.Format(time.RFC3339))
	form.Set("end", to.Format(time.RFC3339))
	form.Set("encoding", "json")
	form.Set("pretty_px", "false")
	form.Set("pretty_ts", "false")

	body, err := p.client.PostForm(ctx, p.cfg.BaseURL+"/v0/timeseries.get_range", form, http.Header{})
	if err != nil {
		return nil, err
	}
	bars, err := parseRecords(body, req.Resolution, req.Symbol.Location())
	if err != nil {
		return nil, err
	}
	return []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, bars)}, nil
}

// parseRecords decodes newline-delimited OHLCV records.
func parseRecords(body []byte, res model.Resolution, loc *time.Location) ([]model.TradeBar, error) {
	var bars []model.TradeBar
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), 4<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec ohlcvRecord
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", Tag, line, err)
		}
		ns, err := strconv.ParseInt(rec.Hd.TsEvent.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: line %d ts_event: %w", Tag, line, err)
		}
		ts := time.Unix(0, ns).UTC()
		if res.IsDateBased() {
			ts = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc)
		} else {
			ts = ts.In(loc)
		}
		var px [4]float64
		for i, n := range []json.Number{rec.Open, rec.High, rec.Low, rec.Close} {
			if px[i], err = FixedPrice(n.String()); err != nil {
				return nil, fmt.Errorf("%s: line %d: %w", Tag, line, err)
			}
		}
		vol, err := strconv.ParseFloat(rec.Volume.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: line %d volume: %w", Tag, line, err)
		}
		bars = append(bars, model.TradeBar{Time: ts, Open: px[0], High: px[1], Low: px[2], Close: px[3], Volume: vol})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: read records: %w", Tag, err)
	}
	return bars, nil
}

// FixedPrice converts a 1e-9 fixed-point integer string to a float price.
func FixedPrice(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", s, err)
	}
	f, _ := d.Shift(priceExponent).Float64()
	return f, nil
}
