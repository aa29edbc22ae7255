package canon

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"lean-data/internal/model"
)

// PriceScale returns the integer multiplier prices of sym are written with, 0 for floats.
// Futures use the per-product table; everything else the asset-class profile.
func PriceScale(sym model.Symbol) int64 {
	if sym.Class == model.Future {
		p, _ := model.LookupFuturesProduct(sym.Ticker)
		return p.Multiplier
	}
	return model.ProfileOf(sym.Class).PriceScale
}

// ScalePrice converts a vendor price to its scaled integer form.
func ScalePrice(p float64, scale int64) (int64, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("price is not finite: %v", p)
	}
	return decimal.NewFromFloat(p).Mul(decimal.NewFromInt(scale)).Round(0).IntPart(), nil
}

// UnscalePrice is the inverse of ScalePrice.
func UnscalePrice(v, scale int64) float64 {
	return decimal.NewFromInt(v).Div(decimal.NewFromInt(scale)).InexactFloat64()
}

// FormatPrice renders p for a column with the given scale (0 keeps the float).
func FormatPrice(p float64, scale int64) (string, error) {
	if scale <= 0 {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return "", fmt.Errorf("price is not finite: %v", p)
		}
		return strconv.FormatFloat(p, 'f', -1, 64), nil
	}
	v, err := ScalePrice(p, scale)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(v, 10), nil
}

// ParsePrice reads a price column written by FormatPrice.
func ParsePrice(s string, scale int64) (float64, error) {
	if scale <= 0 {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse price %q: %w", s, err)
		}
		return f, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse scaled price %q: %w", s, err)
	}
	return UnscalePrice(v, scale), nil
}

// FormatVolume renders v as an integer unless floatVolume is set.
func FormatVolume(v float64, floatVolume bool) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("volume is not finite: %v", v)
	}
	if floatVolume {
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return strconv.FormatInt(int64(math.Round(v)), 10), nil
}

// ParseVolume reads a volume column.
func ParseVolume(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse volume %q: %w", s, err)
	}
	return f, nil
}
