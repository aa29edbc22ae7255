package canon

import "strings"

var vendorSuffixes = []string{"=X", "=F", ".FUT"}

// NormalizeSymbol folds vendor spellings of a ticker into the canonical form used on
// disk before lower-casing: "EURUSD=X" -> "EURUSD", "BTC-USD" -> "BTCUSD", "^GSPC" -> "GSPC".
// Share-class dots ("BRK.B") are kept.
func NormalizeSymbol(s string) string {
	t := strings.ToUpper(strings.TrimSpace(s))
	for _, suf := range vendorSuffixes {
		t = strings.TrimSuffix(t, suf)
	}
	t = strings.TrimPrefix(t, "^")
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '/', '_', ' ', '^', '=':
			return -1
		}
		return r
	}, t)
}
