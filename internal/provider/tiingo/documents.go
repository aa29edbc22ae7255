package tiingo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider/base"
)

// FetchFundamentals returns the company meta record, statements and daily metrics.
// Fundamentals are an add-on subscription; a 4xx on one endpoint is returned after
// the others have been tried.
func (p *Provider) FetchFundamentals(ctx context.Context, sym model.Symbol) ([]model.Document, error) {
	if sym.Class != model.Equity {
		return nil, nil
	}
	t := strings.ToLower(sym.Ticker)
	calls := []struct {
		path     string
		q        url.Values
		category string
		name     string
	}{
		{"/tiingo/fundamentals/meta", url.Values{"tickers": {t}}, "fundamentals", "meta"},
		{"/tiingo/fundamentals/" + url.PathEscape(t) + "/statements", nil, "financials", "statements"},
		{"/tiingo/fundamentals/" + url.PathEscape(t) + "/daily", nil, "fundamentals", "daily"},
	}
	var docs []model.Document
	var firstErr error
	for _, c := range calls {
		body, err := p.client.Get(ctx, p.cfg.BaseURL+c.path, c.q, http.Header{})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if base.IsEmptyPayload(body) {
			continue
		}
		doc, err := base.NewDocument(sym, c.category, c.name, body)
		if err != nil {
			return docs, fmt.Errorf("%s %s: %w", Tag, c.name, err)
		}
		docs = append(docs, doc)
	}
	return docs, firstErr
}

// FetchNews returns news items tagged with the symbol published in [start, end].
func (p *Provider) FetchNews(ctx context.Context, sym model.Symbol, start, end time.Time) ([]model.Document, error) {
	q := url.Values{
		"tickers":   {strings.ToLower(sym.Ticker)},
		"startDate": {start.Format(time.DateOnly)},
		"endDate":   {end.Format(time.DateOnly)},
		"limit":     {"1000"},
		"sortBy":    {"publishedDate"},
	}
	body, err := p.client.Get(ctx, p.cfg.BaseURL+"/tiingo/news", q, http.Header{})
	if err != nil {
		return nil, err
	}
	if base.IsEmptyPayload(body) {
		return nil, nil
	}
	name := fmt.Sprintf("news_%s_%s", start.Format("20060102"), end.Format("20060102"))
	doc, err := base.NewDocument(sym, "news", name, body)
	if err != nil {
		return nil, err
	}
	return []model.Document{doc}, nil
}
