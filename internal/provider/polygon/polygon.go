// Package polygon fetches continuous futures aggregates from the Polygon REST API.
package polygon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
	"lean-data/internal/ratelimit"
)

const (
	Tag        = "polygon"
	DefaultRPM = 5
	DefaultURL = "https://api.polygon.io"

	// Max 50k results per request
	maxLimit = 50000

	// Max days per 1-minute aggregates request (~50k bars / ~960 min/day; use 50 for safety)
	maxDaysPerMinuteRequest = 50

	maxRetries = 3
	retryDelay = 15 * time.Second
)

var timespans = map[model.Resolution]string{
	model.Second:  "second",
	model.Minute:  "minute",
	model.Hour:    "hour",
	model.Daily:   "day",
	model.Weekly:  "week",
	model.Monthly: "month",
}

// chunkDays bounds the calendar span of one request per resolution; 0 means one request
// for the whole range, relying on next_url.
var chunkDays = map[model.Resolution]int{
	model.Second: 1,
	model.Minute: maxDaysPerMinuteRequest,
}

// nowFunc is replaced in tests.
var nowFunc = time.Now

// Config holds Polygon credentials and endpoint. APIKey may list several keys
// separated by commas; they are used round-robin.
type Config struct {
	APIKey     string
	BaseURL    string
	RPM        int
	RetryDelay time.Duration
}

// Provider is the Polygon futures adapter.
type Provider struct {
	base.Info
	cfg    Config
	keys   *KeyPool
	client *base.Client
}

var _ provider.DataProvider = (*Provider)(nil)

// New creates a Polygon adapter. The rate budget grows with the number of keys.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.RPM == 0 {
		cfg.RPM = DefaultRPM
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = retryDelay
	}
	keys := NewKeyPool(cfg.APIKey)
	rpm := cfg.RPM * max(keys.Len(), 1)
	return &Provider{
		Info: base.Info{
			Tag:         Tag,
			RPM:         rpm,
			Resolutions: []model.Resolution{model.Second, model.Minute, model.Hour, model.Daily, model.Weekly, model.Monthly},
			Classes:     []model.AssetClass{model.Future},
		},
		cfg:    cfg,
		keys:   keys,
		client: base.NewClient(Tag, rpm),
	}
}

// Resolve routes a futures root to its exchange directory.
func (p *Provider) Resolve(ticker string) model.Symbol {
	prod, _ := model.LookupFuturesProduct(ticker)
	return model.Symbol{Ticker: prod.Root, Class: model.Future, Venue: strings.ToLower(prod.Exchange)}
}

// Close logs per-key usage.
func (p *Provider) Close() error {
	if p.keys.Len() > 1 {
		p.client.Logger().Info("key usage", "requests", p.keys.Usage())
	}
	return nil
}

// Fetch returns one trade series for the request. The range is split into chunks
// and each chunk follows next_url until exhausted.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	span, ok := timespans[req.Resolution]
	if !ok {
		return nil, p.CheckResolution(req.Resolution)
	}
	loc := req.Symbol.Location()
	ticker := strings.ToUpper(req.Ticker())
	from, to := base.DayRange(req.Start, req.End, time.UTC)
	chunks := splitDateRangeIntoChunks(from, to.AddDate(0, 0, -1), chunkDays[req.Resolution])
	log := p.client.Logger().With("ticker", ticker)
	if len(chunks) > 1 {
		log.Debug("split range", "chunks", len(chunks))
	}

	var bars []model.TradeBar
	for i, ch := range chunks {
		chunkFrom := ch[0]
		chunkTo := adjustLastChunkToAvoidDelayed(ch[1].AddDate(0, 0, 1).Add(-time.Millisecond), i == len(chunks)-1)
		if chunkTo.Before(chunkFrom) {
			continue
		}
		next := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/%s/%d/%d",
			p.cfg.BaseURL, url.PathEscape(ticker), span, chunkFrom.UnixMilli(), chunkTo.UnixMilli())
		q := url.Values{}
		q.Set("adjusted", "true")
		q.Set("limit", strconv.Itoa(maxLimit))
		q.Set("sort", "asc")
		for next != "" {
			resp, err := p.doAggregatesRequest(ctx, next, q)
			if err != nil {
				return nil, err
			}
			if resp == nil {
				log.Warn("chunk delayed, skipping", "from", chunkFrom.Format(time.DateOnly), "to", chunkTo.Format(time.DateOnly))
				break
			}
			for _, raw := range resp.Results {
				bars = append(bars, raw.ToTradeBar(req.Resolution, loc))
			}
			next, q = resp.NextURL, url.Values{}
		}
	}
	return []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, bars)}, nil
}

// doAggregatesRequest runs one GET with retries on transient failures.
// Returns (nil, nil) when status is DELAYED (caller should skip chunk).
func (p *Provider) doAggregatesRequest(ctx context.Context, rawURL string, q url.Values) (*AggregatesResponse, error) {
	var result *AggregatesResponse
	err := ratelimit.Retry(ctx, maxRetries, p.cfg.RetryDelay, func(attempt int) error {
		qq := url.Values{}
		for k, v := range q {
			qq[k] = v
		}
		qq.Set("apiKey", p.keys.Next())
		var resp AggregatesResponse
		if err := p.client.GetJSON(ctx, rawURL, qq, http.Header{}, &resp); err != nil {
			if errors.Is(err, base.ErrTransient) && attempt < maxRetries {
				p.client.Logger().Warn("retrying", "attempt", attempt, "error", err)
			}
			return err
		}
		switch resp.Status {
		case "OK":
			result = &resp
		case "DELAYED":
			result = nil
		default:
			return fmt.Errorf("%s: API status not OK: %s: %w", Tag, resp.Status, base.ErrPermanent)
		}
		return nil
	})
	return result, err
}

// splitDateRangeIntoChunks splits the inclusive day range [from, to] into chunks of at
// most maxDays days. maxDays <= 0 yields a single chunk.
func splitDateRangeIntoChunks(from, to time.Time, maxDays int) [][2]time.Time {
	var chunks [][2]time.Time
	start := from.UTC()
	end := to.UTC()

	if start.After(end) {
		return chunks
	}
	if maxDays <= 0 {
		return [][2]time.Time{{start, end}}
	}

	for currentStart := start; !currentStart.After(end); {
		currentEnd := currentStart.AddDate(0, 0, maxDays-1)
		if currentEnd.After(end) {
			currentEnd = end
		}

		chunks = append(chunks, [2]time.Time{currentStart, currentEnd})

		if currentEnd.Equal(end) {
			break
		}

		currentStart = currentEnd.AddDate(0, 0, 1)
	}

	return chunks
}

// adjustLastChunkToAvoidDelayed returns chunkTo unchanged, or end of previous day if chunkTo is today/future (avoids DELAYED).
func adjustLastChunkToAvoidDelayed(chunkTo time.Time, isLastChunk bool) time.Time {
	if !isLastChunk {
		return chunkTo
	}
	now := nowFunc().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	chunkToDate := time.Date(chunkTo.Year(), chunkTo.Month(), chunkTo.Day(), 0, 0, 0, 0, time.UTC)
	if !chunkToDate.Before(today) {
		return today.Add(-time.Millisecond)
	}
	return chunkTo
}
