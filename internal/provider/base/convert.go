package base

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ToFloat converts a loosely typed JSON value (number, numeric string) to float64.
func ToFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		if s == "" {
			return 0, fmt.Errorf("empty number")
		}
		return strconv.ParseFloat(s, 64)
	case nil:
		return 0, fmt.Errorf("null number")
	}
	return 0, fmt.Errorf("unexpected number type %T", v)
}

// ToInt64 converts a loosely typed JSON value to int64.
func ToInt64(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	}
	f, err := ToFloat(v)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

var fiat = map[string]bool{
	"USD": true, "EUR": true, "JPY": true, "GBP": true, "CHF": true, "AUD": true, "CAD": true, "NZD": true,
	"CNY": true, "HKD": true, "SEK": true, "NOK": true, "DKK": true, "INR": true, "SGD": true, "MXN": true,
	"ZAR": true, "TRY": true, "BRL": true, "KRW": true, "PLN": true,
}

// IsFiat reports whether code is a known fiat currency.
func IsFiat(code string) bool { return fiat[strings.ToUpper(code)] }

// SplitPair splits "BTC-USD", "EUR/USD", "EURUSD=X", "BTCUSDT" or "EURUSD" into
// base and quote codes. ok is false when no split can be inferred.
func SplitPair(ticker string) (string, string, bool) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	t = strings.TrimSuffix(t, "=X")
	for _, sep := range []string{"-", "/", "_"} {
		if b, q, found := strings.Cut(t, sep); found && b != "" && q != "" {
			return b, q, true
		}
	}
	for _, q := range []string{"USDT", "USDC", "BUSD"} {
		if strings.HasSuffix(t, q) && len(t) > len(q) {
			return strings.TrimSuffix(t, q), q, true
		}
	}
	if len(t) == 6 {
		return t[:3], t[3:], true
	}
	if strings.HasSuffix(t, "USD") && len(t) > 3 {
		return strings.TrimSuffix(t, "USD"), "USD", true
	}
	return "", "", false
}

// IsForexPair reports whether ticker splits into two fiat currencies.
func IsForexPair(ticker string) bool {
	b, q, ok := SplitPair(ticker)
	return ok && IsFiat(b) && IsFiat(q)
}
