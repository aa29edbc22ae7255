package canon

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"lean-data/internal/model"
)

// RenderTradeBarCSV renders TradeBars as archive rows: time, O, H, L, C, V.
func RenderTradeBarCSV(bars []model.TradeBar, sym model.Symbol, res model.Resolution) ([][]string, error) {
	scale := PriceScale(sym)
	floatVol := model.ProfileOf(sym.Class).FloatVolume
	rows := make([][]string, 0, len(bars))
	for i, b := range bars {
		row, err := tradeRow(b, sym, res, scale, floatVol)
		if err != nil {
			return nil, fmt.Errorf("trade bar %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// RenderOptionBarCSV renders OptionBars: the TradeBar columns plus open interest.
func RenderOptionBarCSV(bars []model.OptionBar, sym model.Symbol, res model.Resolution) ([][]string, error) {
	scale := PriceScale(sym)
	floatVol := model.ProfileOf(sym.Class).FloatVolume
	rows := make([][]string, 0, len(bars))
	for i, b := range bars {
		row, err := tradeRow(b.TradeBar, sym, res, scale, floatVol)
		if err != nil {
			return nil, fmt.Errorf("option bar %d: %w", i, err)
		}
		oi, err := FormatVolume(b.OpenInterest, false)
		if err != nil {
			return nil, fmt.Errorf("option bar %d open interest: %w", i, err)
		}
		rows = append(rows, append(row, oi))
	}
	return rows, nil
}

// RenderQuoteBarCSV renders QuoteBars: time, bid OHLC, ask OHLC.
func RenderQuoteBarCSV(bars []model.QuoteBar, sym model.Symbol, res model.Resolution) ([][]string, error) {
	scale := PriceScale(sym)
	rows := make([][]string, 0, len(bars))
	for i, q := range bars {
		row := make([]string, 0, 9)
		row = append(row, FormatTime(q.Time, sym, res))
		for _, p := range []float64{q.BidOpen, q.BidHigh, q.BidLow, q.BidClose, q.AskOpen, q.AskHigh, q.AskLow, q.AskClose} {
			s, err := FormatPrice(p, scale)
			if err != nil {
				return nil, fmt.Errorf("quote bar %d: %w", i, err)
			}
			row = append(row, s)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// RenderSeries dispatches on the series kind.
func RenderSeries(s model.Series) ([][]string, error) {
	switch s.Kind {
	case model.KindTrade, model.KindEconomic:
		return RenderTradeBarCSV(s.Trades, s.Symbol, s.Resolution)
	case model.KindQuote:
		return RenderQuoteBarCSV(s.Quotes, s.Symbol, s.Resolution)
	case model.KindOption:
		return RenderOptionBarCSV(s.Options, s.Symbol, s.Resolution)
	}
	return nil, fmt.Errorf("unknown series kind %q", s.Kind)
}

func tradeRow(b model.TradeBar, sym model.Symbol, res model.Resolution, scale int64, floatVol bool) ([]string, error) {
	row := make([]string, 0, 7)
	row = append(row, FormatTime(b.Time, sym, res))
	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		s, err := FormatPrice(p, scale)
		if err != nil {
			return nil, err
		}
		row = append(row, s)
	}
	v, err := FormatVolume(b.Volume, floatVol)
	if err != nil {
		return nil, err
	}
	return append(row, v), nil
}

// EncodeCSV joins rows with LF line endings and no header.
func EncodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCSV splits archive CSV content into rows. Rows may have differing widths.
func DecodeCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.ReuseRecord = false
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	return rows, nil
}

// InnerName is the CSV entry name inside an archive: <symbol>_<resolution>_<kind>.csv.
func InnerName(sym model.Symbol, res model.Resolution, kind model.Kind) string {
	return fmt.Sprintf("%s_%s_%s.csv", sym.FileName(), res, kind.FileKind())
}
