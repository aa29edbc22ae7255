package canon

import (
	"fmt"
	"time"

	"lean-data/internal/model"
)

// DecodeTradeBars reconstructs TradeBars from rows produced by RenderTradeBarCSV.
// day is the archive date for millisecond time columns; zero for wall-clock archives.
func DecodeTradeBars(rows [][]string, sym model.Symbol, res model.Resolution, day time.Time) ([]model.TradeBar, error) {
	scale := PriceScale(sym)
	bars := make([]model.TradeBar, 0, len(rows))
	for i, row := range rows {
		if len(row) != 6 {
			return nil, fmt.Errorf("row %d: want 6 columns, got %d", i, len(row))
		}
		b, err := parseTradeRow(row, sym, res, day, scale)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// DecodeOptionBars reconstructs OptionBars from 7-column rows.
func DecodeOptionBars(rows [][]string, sym model.Symbol, res model.Resolution, day time.Time) ([]model.OptionBar, error) {
	scale := PriceScale(sym)
	bars := make([]model.OptionBar, 0, len(rows))
	for i, row := range rows {
		if len(row) != 7 {
			return nil, fmt.Errorf("row %d: want 7 columns, got %d", i, len(row))
		}
		b, err := parseTradeRow(row[:6], sym, res, day, scale)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		oi, err := ParseVolume(row[6])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		bars = append(bars, model.OptionBar{TradeBar: b, OpenInterest: oi})
	}
	return bars, nil
}

// DecodeQuoteBars reconstructs QuoteBars from 9-column rows.
func DecodeQuoteBars(rows [][]string, sym model.Symbol, res model.Resolution, day time.Time) ([]model.QuoteBar, error) {
	scale := PriceScale(sym)
	bars := make([]model.QuoteBar, 0, len(rows))
	for i, row := range rows {
		if len(row) != 9 {
			return nil, fmt.Errorf("row %d: want 9 columns, got %d", i, len(row))
		}
		t, err := ParseTime(row[0], day, sym, res)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		var p [8]float64
		for j := range p {
			if p[j], err = ParsePrice(row[j+1], scale); err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
		}
		bars = append(bars, model.QuoteBar{
			Time:    t,
			BidOpen: p[0], BidHigh: p[1], BidLow: p[2], BidClose: p[3],
			AskOpen: p[4], AskHigh: p[5], AskLow: p[6], AskClose: p[7],
		})
	}
	return bars, nil
}

func parseTradeRow(row []string, sym model.Symbol, res model.Resolution, day time.Time, scale int64) (model.TradeBar, error) {
	t, err := ParseTime(row[0], day, sym, res)
	if err != nil {
		return model.TradeBar{}, err
	}
	var p [4]float64
	for j := range p {
		if p[j], err = ParsePrice(row[j+1], scale); err != nil {
			return model.TradeBar{}, err
		}
	}
	v, err := ParseVolume(row[5])
	if err != nil {
		return model.TradeBar{}, err
	}
	return model.TradeBar{Time: t, Open: p[0], High: p[1], Low: p[2], Close: p[3], Volume: v}, nil
}
