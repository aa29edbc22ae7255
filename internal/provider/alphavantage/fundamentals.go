package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"lean-data/internal/model"
	"lean-data/internal/provider/base"
)

// ListingRow is one LISTING_STATUS CSV record.
type ListingRow struct {
	Symbol        string `csv:"symbol" json:"symbol"`
	Name          string `csv:"name" json:"name"`
	Exchange      string `csv:"exchange" json:"exchange"`
	AssetType     string `csv:"assetType" json:"asset_type"`
	IPODate       string `csv:"ipoDate" json:"ipo_date"`
	DelistingDate string `csv:"delistingDate" json:"delisting_date"`
	Status        string `csv:"status" json:"status"`
}

// listingCache holds the listing table for the lifetime of the adapter; it is one
// large CSV download shared by every symbol.
type listingCache struct {
	mu   sync.Mutex
	rows map[string]ListingRow
}

func (c *listingCache) get(ctx context.Context, load func(context.Context) ([]ListingRow, error)) (map[string]ListingRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rows != nil {
		return c.rows, nil
	}
	rows, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.rows = make(map[string]ListingRow, len(rows))
	for _, r := range rows {
		c.rows[strings.ToUpper(r.Symbol)] = r
	}
	return c.rows, nil
}

// ParseListing decodes the LISTING_STATUS CSV body.
func ParseListing(body []byte) ([]ListingRow, error) {
	var rows []ListingRow
	if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
		return nil, fmt.Errorf("%s: parse listing: %w", Tag, err)
	}
	return rows, nil
}

func (p *Provider) loadListing(ctx context.Context) ([]ListingRow, error) {
	body, err := p.query(ctx, "LISTING_STATUS", url.Values{})
	if err != nil {
		return nil, err
	}
	return ParseListing(body)
}

// statement is a fundamentals function and where its payload is filed.
type statement struct {
	function string
	category string
	name     string
}

var statements = []statement{
	{"OVERVIEW", "fundamentals", "overview"},
	{"INCOME_STATEMENT", "financials", "income_statement"},
	{"BALANCE_SHEET", "financials", "balance_sheet"},
	{"CASH_FLOW", "financials", "cash_flow"},
}

// FetchFundamentals returns the company overview, the three financial statements and
// the symbol's listing record. A failing call does not prevent the others.
func (p *Provider) FetchFundamentals(ctx context.Context, sym model.Symbol) ([]model.Document, error) {
	if sym.Class != model.Equity {
		return nil, nil
	}
	var docs []model.Document
	var errs []error
	for _, st := range statements {
		doc, err := p.document(ctx, sym, st.function, url.Values{"symbol": {sym.Ticker}}, st.category, st.name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if doc != nil {
			docs = append(docs, *doc)
		}
	}

	listing, err := p.listing.get(ctx, p.loadListing)
	if err != nil {
		errs = append(errs, err)
	} else if r, ok := listing[strings.ToUpper(sym.Ticker)]; ok {
		payload, err := json.Marshal(r)
		if err == nil {
			var doc model.Document
			if doc, err = base.NewDocument(sym, "fundamentals", "listing_status", payload); err == nil {
				docs = append(docs, doc)
			}
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return docs, errors.Join(errs...)
}

// FetchEarnings returns annual and quarterly EPS history.
func (p *Provider) FetchEarnings(ctx context.Context, sym model.Symbol) ([]model.Document, error) {
	if sym.Class != model.Equity {
		return nil, nil
	}
	doc, err := p.document(ctx, sym, "EARNINGS", url.Values{"symbol": {sym.Ticker}}, "earnings", "earnings")
	if err != nil || doc == nil {
		return nil, err
	}
	return []model.Document{*doc}, nil
}

// FetchNews returns the NEWS_SENTIMENT feed for the symbol over [start, end].
func (p *Provider) FetchNews(ctx context.Context, sym model.Symbol, start, end time.Time) ([]model.Document, error) {
	tickers := sym.Ticker
	switch sym.Class {
	case model.Crypto:
		coin, _, _ := base.SplitPair(sym.Ticker)
		tickers = "CRYPTO:" + coin
	case model.Forex:
		b, q, _ := base.SplitPair(sym.Ticker)
		tickers = "FOREX:" + b + ",FOREX:" + q
	}
	q := url.Values{
		"tickers":   {tickers},
		"time_from": {start.Format("20060102") + "T0000"},
		"time_to":   {end.Format("20060102") + "T2359"},
		"sort":      {"EARLIEST"},
		"limit":     {"1000"},
	}
	name := fmt.Sprintf("news_%s_%s", start.Format("20060102"), end.Format("20060102"))
	doc, err := p.document(ctx, sym, "NEWS_SENTIMENT", q, "news", name)
	if err != nil || doc == nil {
		return nil, err
	}
	return []model.Document{*doc}, nil
}

// document runs function and wraps its JSON body. Empty payloads yield nil.
func (p *Provider) document(ctx context.Context, sym model.Symbol, function string, q url.Values, category, name string) (*model.Document, error) {
	body, err := p.query(ctx, function, q)
	if err != nil {
		return nil, err
	}
	if base.IsEmptyPayload(body) {
		return nil, nil
	}
	doc, err := base.NewDocument(sym, category, name, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", Tag, function, err)
	}
	return &doc, nil
}
