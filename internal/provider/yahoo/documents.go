package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	fundamentalModules = "assetProfile,summaryDetail,defaultKeyStatistics,financialData"
	statementModules   = "incomeStatementHistory,incomeStatementHistoryQuarterly,balanceSheetHistory,cashflowStatementHistory"
	earningsModules    = "earnings,earningsHistory,earningsTrend,calendarEvents"
)

// sessionCrumb returns the anti-forgery crumb quoteSummary requires, fetching it once.
// Failure is not fatal; requests are then sent without one.
func (p *Provider) sessionCrumb(ctx context.Context) string {
	p.crumbMu.Lock()
	defer p.crumbMu.Unlock()
	if p.crumb != nil {
		return *p.crumb
	}
	crumb := ""
	body, err := p.client.Get(ctx, p.cfg.BaseURL+"/v1/test/getcrumb", nil, nil)
	if err != nil {
		p.client.Logger().Debug("crumb unavailable", "error", err)
	} else {
		crumb = strings.TrimSpace(string(body))
	}
	p.crumb = &crumb
	return crumb
}

func (p *Provider) quoteSummary(ctx context.Context, ticker, modules string) ([]byte, error) {
	q := url.Values{"modules": {modules}}
	if c := p.sessionCrumb(ctx); c != "" {
		q.Set("crumb", c)
	}
	body, err := p.get(ctx, p.cfg.BaseURL+"/v10/finance/quoteSummary/"+url.PathEscape(ticker), q)
	if err != nil {
		return nil, err
	}
	var probe struct {
		QuoteSummary struct {
			Result []json.RawMessage `json:"result"`
			Error  *apiError         `json:"error"`
		} `json:"quoteSummary"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%s: parse quoteSummary: %w", Tag, err)
	}
	if e := probe.QuoteSummary.Error; e != nil {
		return nil, fmt.Errorf("%s: %s: %s: %w", Tag, e.Code, e.Description, base.ErrPermanent)
	}
	if len(probe.QuoteSummary.Result) == 0 {
		return nil, nil
	}
	return probe.QuoteSummary.Result[0], nil
}

func vendorTickerOf(sym model.Symbol) string {
	return VendorTicker(provider.Request{Symbol: sym})
}

// FetchFundamentals returns the profile/statistics summary and the financial
// statements of an equity.
func (p *Provider) FetchFundamentals(ctx context.Context, sym model.Symbol) ([]model.Document, error) {
	if sym.Class != model.Equity {
		return nil, nil
	}
	ticker := vendorTickerOf(sym)
	var docs []model.Document
	for _, part := range []struct{ modules, category, name string }{
		{fundamentalModules, "fundamentals", "summary"},
		{statementModules, "financials", "statements"},
	} {
		payload, err := p.quoteSummary(ctx, ticker, part.modules)
		if err != nil {
			return docs, err
		}
		if base.IsEmptyPayload(payload) {
			continue
		}
		doc, err := base.NewDocument(sym, part.category, part.name, payload)
		if err != nil {
			return docs, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FetchEarnings returns earnings history, trend and the upcoming calendar.
func (p *Provider) FetchEarnings(ctx context.Context, sym model.Symbol) ([]model.Document, error) {
	if sym.Class != model.Equity {
		return nil, nil
	}
	payload, err := p.quoteSummary(ctx, vendorTickerOf(sym), earningsModules)
	if err != nil || base.IsEmptyPayload(payload) {
		return nil, err
	}
	doc, err := base.NewDocument(sym, "earnings", "earnings", payload)
	if err != nil {
		return nil, err
	}
	return []model.Document{doc}, nil
}

type searchNews struct {
	UUID                string          `json:"uuid"`
	Title               string          `json:"title"`
	Publisher           string          `json:"publisher"`
	Link                string          `json:"link"`
	ProviderPublishTime int64           `json:"providerPublishTime"`
	RelatedTickers      []string        `json:"relatedTickers,omitempty"`
	Thumbnail           json.RawMessage `json:"thumbnail,omitempty"`
}

// FetchNews returns search headlines for the symbol published within [start, end].
func (p *Provider) FetchNews(ctx context.Context, sym model.Symbol, start, end time.Time) ([]model.Document, error) {
	q := url.Values{"q": {vendorTickerOf(sym)}, "newsCount": {"100"}, "quotesCount": {"0"}}
	body, err := p.get(ctx, p.cfg.BaseURL+"/v1/finance/search", q)
	if err != nil {
		return nil, err
	}
	var resp struct {
		News []searchNews `json:"news"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%s: parse search: %w", Tag, err)
	}
	from, to := base.DayRange(start, end, time.UTC)
	var items []searchNews
	for _, n := range resp.News {
		if base.InRange(time.Unix(n.ProviderPublishTime, 0), from, to) {
			items = append(items, n)
		}
	}
	if len(items) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("news_%s_%s", start.Format("20060102"), end.Format("20060102"))
	doc, err := base.NewDocument(sym, "news", name, payload)
	if err != nil {
		return nil, err
	}
	return []model.Document{doc}, nil
}

// FetchOptionChain returns the nearest-expiry option chain snapshot.
func (p *Provider) FetchOptionChain(ctx context.Context, sym model.Symbol) ([]model.Document, error) {
	if sym.Class != model.Equity && sym.Class != model.Index {
		return nil, nil
	}
	body, err := p.get(ctx, p.cfg.BaseURL+"/v7/finance/options/"+url.PathEscape(vendorTickerOf(sym)), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		OptionChain struct {
			Result []json.RawMessage `json:"result"`
			Error  *apiError         `json:"error"`
		} `json:"optionChain"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%s: parse options: %w", Tag, err)
	}
	if e := resp.OptionChain.Error; e != nil {
		return nil, fmt.Errorf("%s: %s: %s: %w", Tag, e.Code, e.Description, base.ErrPermanent)
	}
	if len(resp.OptionChain.Result) == 0 || base.IsEmptyPayload(resp.OptionChain.Result[0]) {
		return nil, nil
	}
	name := "chain_" + base.Now().UTC().Format("20060102")
	doc, err := base.NewDocument(sym, "options", name, resp.OptionChain.Result[0])
	if err != nil {
		return nil, err
	}
	return []model.Document{doc}, nil
}
