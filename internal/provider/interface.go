package provider

import (
	"context"
	"time"

	"lean-data/internal/model"
)

// Request is one fetch call: a symbol, a resolution and an inclusive date range.
// Start and End are calendar dates; their clock and zone are ignored.
type Request struct {
	Symbol       model.Symbol
	VendorTicker string // ticker as the user spelled it, e.g. "EURUSD=X"
	Resolution   model.Resolution
	Start        time.Time
	End          time.Time
}

// Ticker returns the vendor spelling, falling back to the canonical ticker.
func (r Request) Ticker() string {
	if r.VendorTicker != "" {
		return r.VendorTicker
	}
	return r.Symbol.Ticker
}

// DataProvider is the capability contract every vendor adapter implements.
// Adapters are responsible for their own rate governance and resource cleanup.
type DataProvider interface {
	GetName() string
	// Fetch returns canonical series for the request. A vendor failure yields an
	// error and no data; it never panics into the caller.
	Fetch(ctx context.Context, req Request) ([]model.Series, error)
	SupportedResolutions() []model.Resolution
	RateLimitRPM() int
	// AssetClasses lists the classes this adapter can serve.
	AssetClasses() []model.AssetClass
	// Resolve maps a user-facing ticker to the canonical symbol for this vendor.
	Resolve(ticker string) model.Symbol
	Close() error
}

// FundamentalsProvider returns company fundamentals and financial statements.
type FundamentalsProvider interface {
	FetchFundamentals(ctx context.Context, sym model.Symbol) ([]model.Document, error)
}

// EarningsProvider returns earnings history documents.
type EarningsProvider interface {
	FetchEarnings(ctx context.Context, sym model.Symbol) ([]model.Document, error)
}

// NewsProvider returns news documents for a symbol over a date range.
type NewsProvider interface {
	FetchNews(ctx context.Context, sym model.Symbol, start, end time.Time) ([]model.Document, error)
}

// OptionChainProvider returns listed option chain snapshots.
type OptionChainProvider interface {
	FetchOptionChain(ctx context.Context, sym model.Symbol) ([]model.Document, error)
}
