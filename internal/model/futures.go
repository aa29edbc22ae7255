package model

import "strings"

// FuturesProduct routes a continuous-contract root to its exchange and the integer
// price multiplier its archive is written with.
type FuturesProduct struct {
	Root       string
	Exchange   string
	Multiplier int64
}

var futuresProducts = map[string]FuturesProduct{
	"ES":  {"ES", "CME", 100},
	"NQ":  {"NQ", "CME", 100},
	"RTY": {"RTY", "CME", 100},
	"6E":  {"6E", "CME", 100000},
	"YM":  {"YM", "CBOT", 1},
	"ZC":  {"ZC", "CBOT", 100},
	"ZS":  {"ZS", "CBOT", 100},
	"ZW":  {"ZW", "CBOT", 100},
	"ZB":  {"ZB", "CBOT", 1000000},
	"ZN":  {"ZN", "CBOT", 1000000},
	"GC":  {"GC", "COMEX", 10},
	"SI":  {"SI", "COMEX", 1000},
	"HG":  {"HG", "COMEX", 10000},
	"CL":  {"CL", "NYMEX", 1000},
	"NG":  {"NG", "NYMEX", 1000},
}

// FuturesRoot extracts the product root from vendor spellings such as
// "ES", "es", "ES.FUT", "ES.c.0" or "C:ES".
func FuturesRoot(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if i := strings.LastIndex(t, ":"); i >= 0 {
		t = t[i+1:]
	}
	if i := strings.Index(t, "."); i >= 0 {
		t = t[:i]
	}
	return t
}

// LookupFuturesProduct returns the product entry for ticker. Unknown roots are routed to
// CME with the future class scale and ok=false.
func LookupFuturesProduct(ticker string) (FuturesProduct, bool) {
	root := FuturesRoot(ticker)
	if p, ok := futuresProducts[root]; ok {
		return p, true
	}
	return FuturesProduct{Root: root, Exchange: "CME", Multiplier: ProfileOf(Future).PriceScale}, false
}

// FuturesProducts returns a copy of the product table.
func FuturesProducts() map[string]FuturesProduct {
	out := make(map[string]FuturesProduct, len(futuresProducts))
	for k, v := range futuresProducts {
		out[k] = v
	}
	return out
}
