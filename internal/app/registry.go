package app

import (
	"fmt"
	"sort"
	"strings"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/alpaca"
	"lean-data/internal/provider/alphavantage"
	"lean-data/internal/provider/binance"
	"lean-data/internal/provider/bseindia"
	"lean-data/internal/provider/coindesk"
	"lean-data/internal/provider/databento"
	"lean-data/internal/provider/fred"
	"lean-data/internal/provider/investing"
	"lean-data/internal/provider/nseindia"
	"lean-data/internal/provider/polygon"
	"lean-data/internal/provider/quandl"
	"lean-data/internal/provider/stooq"
	"lean-data/internal/provider/tiingo"
	"lean-data/internal/provider/yahoo"
	"lean-data/internal/tickers"
)

// Vendor is one registry row: static facts about a source plus its factory.
type Vendor struct {
	Tag  string
	Name string
	// Credentials are required env variables; Optional ones are read when set.
	Credentials []string
	Optional    []string
	RPM         int
	Classes     []model.AssetClass
	Universe    map[model.AssetClass][]string

	build func(cfg *Config, rpm int) provider.DataProvider
}

// Registry lists every source in CLI order.
var Registry = []Vendor{
	{
		Tag: alpaca.Tag, Name: "Alpaca Markets",
		Credentials: []string{"ALPACA_API_KEY", "ALPACA_SECRET_KEY"},
		Optional:    []string{"ALPACA_DATA_URL", "ALPACA_FEED"},
		RPM:         alpaca.DefaultRPM,
		Classes:     []model.AssetClass{model.Equity},
		Universe: map[model.AssetClass][]string{
			model.Equity: {"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "SPY", "QQQ"},
		},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return alpaca.New(alpaca.Config{
				KeyID:   cfg.Credential("ALPACA_API_KEY"),
				Secret:  cfg.Credential("ALPACA_SECRET_KEY"),
				BaseURL: cfg.Credential("ALPACA_DATA_URL"),
				Feed:    cfg.Credential("ALPACA_FEED"),
				RPM:     rpm,
			})
		},
	},
	{
		Tag: binance.Tag, Name: "Binance",
		Optional: []string{"BINANCE_API_KEY", "BINANCE_SECRET_KEY"},
		RPM:      binance.DefaultRPM,
		Classes:  []model.AssetClass{model.Crypto},
		Universe: map[model.AssetClass][]string{
			model.Crypto: {"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT"},
		},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return binance.New(binance.Config{
				APIKey:    cfg.Credential("BINANCE_API_KEY"),
				APISecret: cfg.Credential("BINANCE_SECRET_KEY"),
				RPM:       rpm,
			})
		},
	},
	{
		Tag: polygon.Tag, Name: "Polygon.io",
		Credentials: []string{"POLYGON_API_KEY"},
		RPM:         polygon.DefaultRPM,
		Classes:     []model.AssetClass{model.Future},
		Universe: map[model.AssetClass][]string{
			model.Future: {"ES", "NQ", "YM", "RTY", "GC", "SI", "CL", "NG", "ZN", "ZB"},
		},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return polygon.New(polygon.Config{APIKey: cfg.Credential("POLYGON_API_KEY"), RPM: rpm})
		},
	},
	{
		Tag: databento.Tag, Name: "Databento",
		Credentials: []string{"DATABENTO_API_KEY"},
		RPM:         databento.DefaultRPM,
		Classes:     []model.AssetClass{model.Future},
		Universe: map[model.AssetClass][]string{
			model.Future: {"ES", "NQ", "CL", "GC"},
		},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return databento.New(databento.Config{APIKey: cfg.Credential("DATABENTO_API_KEY"), RPM: rpm})
		},
	},
	{
		Tag: alphavantage.Tag, Name: "Alpha Vantage",
		Credentials: []string{"ALPHA_VANTAGE_API_KEY"},
		RPM:         alphavantage.DefaultRPM,
		Classes:     []model.AssetClass{model.Equity, model.Forex, model.Crypto},
		Universe: map[model.AssetClass][]string{
			model.Equity: {"IBM", "AAPL", "MSFT"},
			model.Forex:  {"EURUSD", "GBPUSD"},
			model.Crypto: {"BTC-USD", "ETH-USD"},
		},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return alphavantage.New(alphavantage.Config{APIKey: cfg.Credential("ALPHA_VANTAGE_API_KEY"), RPM: rpm})
		},
	},
	{
		Tag: yahoo.Tag, Name: "Yahoo Finance",
		RPM:     yahoo.DefaultRPM,
		Classes: []model.AssetClass{model.Equity, model.Forex, model.Crypto, model.Index, model.Bond},
		Universe: map[model.AssetClass][]string{
			model.Equity: {"AAPL", "MSFT", "SPY"},
			model.Forex:  {"EURUSD=X", "GBPUSD=X", "USDJPY=X"},
			model.Crypto: {"BTC-USD", "ETH-USD"},
			model.Index:  {"^GSPC", "^DJI", "^IXIC", "^VIX"},
			model.Bond:   {"^TNX", "^IRX"},
		},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return yahoo.New(yahoo.Config{RPM: rpm})
		},
	},
	{
		Tag: tiingo.Tag, Name: "Tiingo",
		Credentials: []string{"TIINGO_API_KEY"},
		RPM:         tiingo.DefaultRPM,
		Classes:     []model.AssetClass{model.Equity, model.Crypto, model.Forex, model.Option},
		Universe: map[model.AssetClass][]string{
			model.Equity: {"AAPL", "MSFT", "GOOGL"},
			model.Crypto: {"BTCUSD", "ETHUSD"},
			model.Forex:  {"EURUSD", "GBPUSD"},
		},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return tiingo.New(tiingo.Config{APIKey: cfg.Credential("TIINGO_API_KEY"), RPM: rpm})
		},
	},
	{
		Tag: nseindia.Tag, Name: "NSE India",
		RPM:      nseindia.DefaultRPM,
		Classes:  []model.AssetClass{model.Equity},
		Universe: map[model.AssetClass][]string{model.Equity: nseindia.Nifty50},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return nseindia.New(nseindia.Config{RPM: rpm})
		},
	},
	{
		Tag: bseindia.Tag, Name: "BSE India",
		RPM:      bseindia.DefaultRPM,
		Classes:  []model.AssetClass{model.Equity},
		Universe: map[model.AssetClass][]string{model.Equity: bseindia.Sensex30},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return bseindia.New(bseindia.Config{RPM: rpm})
		},
	},
	{
		Tag: fred.Tag, Name: "FRED",
		Credentials: []string{"FRED_API_KEY"},
		RPM:         fred.DefaultRPM,
		Classes:     []model.AssetClass{model.Economic},
		Universe:    map[model.AssetClass][]string{model.Economic: fred.DefaultSeries},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return fred.New(fred.Config{APIKey: cfg.Credential("FRED_API_KEY"), RPM: rpm})
		},
	},
	{
		Tag: quandl.Tag, Name: "Nasdaq Data Link (Quandl)",
		Credentials: []string{"QUANDL_API_KEY"},
		RPM:         quandl.DefaultRPM,
		Classes:     []model.AssetClass{model.Equity, model.Economic, model.Index},
		Universe: map[model.AssetClass][]string{
			model.Equity:   {"WIKI/AAPL", "WIKI/MSFT"},
			model.Economic: {"FRED/GDP"},
		},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return quandl.New(quandl.Config{APIKey: cfg.Credential("QUANDL_API_KEY"), RPM: rpm})
		},
	},
	{
		Tag: investing.Tag, Name: "Investing.com",
		RPM:     investing.DefaultRPM,
		Classes: []model.AssetClass{model.Index, model.CFD},
		Universe: map[model.AssetClass][]string{
			model.Index: {"SPX", "DJI", "IXIC", "VIX", "FTSE", "DAX", "N225"},
			model.CFD:   {"XAUUSD", "XAGUSD", "WTI", "BRENT"},
		},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return investing.New(investing.Config{RPM: rpm})
		},
	},
	{
		Tag: stooq.Tag, Name: "Stooq",
		RPM:     stooq.DefaultRPM,
		Classes: []model.AssetClass{model.Equity, model.Index, model.Forex},
		Universe: map[model.AssetClass][]string{
			model.Equity: {"AAPL.US", "MSFT.US"},
			model.Index:  {"^SPX", "^DJI"},
			model.Forex:  {"EURUSD", "USDJPY"},
		},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return stooq.New(stooq.Config{RPM: rpm})
		},
	},
	{
		Tag: coindesk.Tag, Name: "CoinDesk",
		Credentials: []string{"COINDESK_API_KEY"},
		RPM:         coindesk.DefaultRPM,
		Classes:     []model.AssetClass{model.Crypto},
		Universe:    map[model.AssetClass][]string{model.Crypto: {"BTC-USD", "ETH-USD"}},
		build: func(cfg *Config, rpm int) provider.DataProvider {
			return coindesk.New(coindesk.Config{APIKey: cfg.Credential("COINDESK_API_KEY"), RPM: rpm})
		},
	},
}

// LookupVendor finds a registry row by tag, case-insensitively.
func LookupVendor(tag string) (Vendor, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, v := range Registry {
		if v.Tag == tag {
			return v, true
		}
	}
	return Vendor{}, false
}

// VendorTags returns all registry tags in registry order.
func VendorTags() []string {
	out := make([]string, len(Registry))
	for i, v := range Registry {
		out[i] = v.Tag
	}
	return out
}

// NewProvider checks credentials and builds the adapter for tag.
func NewProvider(cfg *Config, tag string) (provider.DataProvider, error) {
	v, ok := LookupVendor(tag)
	if !ok {
		return nil, fmt.Errorf("unknown source %q. Options: %s", tag, strings.Join(VendorTags(), ", "))
	}
	if err := cfg.RequireCredentials(v.Tag); err != nil {
		return nil, err
	}
	return v.build(cfg, cfg.VendorRPM(v.Tag)), nil
}

// Symbols returns the symbol list for (vendor, class): a universe file entry when
// present, else the registry default.
func (v Vendor) Symbols(u tickers.Universe, class model.AssetClass) []string {
	if list, ok := u.Lookup(v.Tag, string(class)); ok {
		return list
	}
	return v.Universe[class]
}

// UniverseClasses lists the classes with a non-empty symbol list, in class order.
func (v Vendor) UniverseClasses(u tickers.Universe) []model.AssetClass {
	var out []model.AssetClass
	for _, c := range model.AssetClasses {
		if len(v.Symbols(u, c)) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// MissingCredentials lists required variables not set in cfg, sorted.
func (v Vendor) MissingCredentials(cfg *Config) []string {
	var out []string
	for _, name := range v.Credentials {
		if cfg.Credential(name) == "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
