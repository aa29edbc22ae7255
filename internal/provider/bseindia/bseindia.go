// Package bseindia is a placeholder adapter for the Bombay Stock Exchange. BSE has no
// stable public history endpoint, so Fetch returns no data instead of failing and the
// source can stay selected in mixed runs.
package bseindia

import (
	"context"
	"strings"
	"sync"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

const (
	Tag        = "bseindia"
	Venue      = "bse"
	DefaultRPM = 30
)

// Sensex30 is the default universe (BSE scrip codes are resolved by the exchange).
var Sensex30 = []string{
	"ADANIPORTS", "ASIANPAINT", "AXISBANK", "BAJAJ-AUTO", "BAJFINANCE", "BAJAJFINSV", "BHARTIARTL",
	"HCLTECH", "HDFCBANK", "HINDUNILVR", "ICICIBANK", "INDUSINDBK", "INFY", "ITC", "JSWSTEEL",
	"KOTAKBANK", "LT", "M&M", "MARUTI", "NESTLEIND", "NTPC", "POWERGRID", "RELIANCE", "SBIN",
	"SUNPHARMA", "TATAMOTORS", "TATASTEEL", "TCS", "TECHM", "TITAN",
}

// Config holds the adapter's rate budget.
type Config struct {
	RPM int
}

// Provider is the BSE placeholder.
type Provider struct {
	base.Info
	warnOnce sync.Once
}

var _ provider.DataProvider = (*Provider)(nil)

// New creates the BSE adapter.
func New(cfg Config) *Provider {
	if cfg.RPM == 0 {
		cfg.RPM = DefaultRPM
	}
	return &Provider{
		Info: base.Info{
			Tag:         Tag,
			RPM:         cfg.RPM,
			Resolutions: []model.Resolution{model.Daily},
			Classes:     []model.AssetClass{model.Equity},
		},
	}
}

// Resolve strips a ".BO" suffix and files the symbol under the BSE venue.
func (p *Provider) Resolve(ticker string) model.Symbol {
	t := strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(ticker)), ".BO")
	sym := p.Symbol(t, model.Equity)
	sym.Venue = Venue
	return sym
}

// Fetch returns no series. The first call logs that the source is not implemented.
func (p *Provider) Fetch(ctx context.Context, req provider.Request) ([]model.Series, error) {
	p.warnOnce.Do(func() {
		base.Logger(Tag).Warn("BSE history is not implemented; returning no data")
	})
	return nil, nil
}
