package saver

import (
	"strings"

	"lean-data/internal/model"
)

// Bar is the flat row written by mirror savers. Times are Unix milliseconds UTC and
// prices are unscaled vendor units.
type Bar struct {
	Timestamp    int64   `json:"t" parquet:"t"`
	Symbol       string  `json:"s" parquet:"s"`
	Open         float64 `json:"o" parquet:"o"`
	High         float64 `json:"h" parquet:"h"`
	Low          float64 `json:"l" parquet:"l"`
	Close        float64 `json:"c" parquet:"c"`
	Volume       float64 `json:"v" parquet:"v"`
	OpenInterest float64 `json:"oi,omitempty" parquet:"oi,optional"`
}

// BarsFromSeries flattens trade, economic and option series. Quote series yield nil.
func BarsFromSeries(s model.Series) []Bar {
	name := s.Symbol.Ticker
	switch s.Kind {
	case model.KindTrade, model.KindEconomic:
		out := make([]Bar, 0, len(s.Trades))
		for _, b := range s.Trades {
			out = append(out, Bar{Timestamp: b.Time.UnixMilli(), Symbol: name, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
		}
		return out
	case model.KindOption:
		out := make([]Bar, 0, len(s.Options))
		for _, b := range s.Options {
			out = append(out, Bar{Timestamp: b.Time.UnixMilli(), Symbol: name, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume, OpenInterest: b.OpenInterest})
		}
		return out
	}
	return nil
}

// PacketSaver writes a mirror copy of cleaned bars next to the archive tree.
type PacketSaver interface {
	Save(bars []Bar, path string) error
	Extension() string
}

// NewPacketSaver creates implementation by format (csv, parquet, json).
// Returns nil if format not supported.
func NewPacketSaver(format string) PacketSaver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "parquet":
		return ParquetSaver{}
	case "json":
		return JSONSaver{}
	default:
		return nil
	}
}
