package polygon

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"lean-data/internal/model"
)

// BarRaw is one aggregate as returned by the API. Volume may arrive as an int,
// a float in scientific notation or a string.
type BarRaw struct {
	Timestamp    int64         `json:"t"` // Unix timestamp in milliseconds
	Open         float64       `json:"o"`
	High         float64       `json:"h"`
	Low          float64       `json:"l"`
	Close        float64       `json:"c"`
	Volume       FlexibleInt64 `json:"v"`
	VWAP         float64       `json:"vw,omitempty"`
	Transactions FlexibleInt64 `json:"n,omitempty"`
}

// ToTradeBar converts the aggregate to a bar localized to loc. Daily and coarser
// bars keep the UTC session date at local midnight.
func (br BarRaw) ToTradeBar(res model.Resolution, loc *time.Location) model.TradeBar {
	ts := time.UnixMilli(br.Timestamp).UTC()
	if res.IsDateBased() {
		ts = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc)
	} else {
		ts = ts.In(loc)
	}
	return model.TradeBar{
		Time:   ts,
		Open:   br.Open,
		High:   br.High,
		Low:    br.Low,
		Close:  br.Close,
		Volume: float64(br.Volume.Int64()),
	}
}

// AggregatesResponse is the aggregates payload with its next_url cursor.
type AggregatesResponse struct {
	Ticker       string   `json:"ticker"`
	QueryCount   int      `json:"queryCount"`
	ResultsCount int      `json:"resultsCount"`
	Adjusted     bool     `json:"adjusted"`
	Results      []BarRaw `json:"results"`
	Status       string   `json:"status"`
	RequestID    string   `json:"request_id"`
	Count        int      `json:"count"`
	NextURL      string   `json:"next_url,omitempty"`
}

// FlexibleInt64 parses int or float (scientific notation) to int64
type FlexibleInt64 int64

// UnmarshalJSON parses int, float or numeric string.
func (f *FlexibleInt64) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		val, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		*f = FlexibleInt64(int64(val))
		return nil
	}

	var floatVal float64
	if err := json.Unmarshal(data, &floatVal); err == nil {
		*f = FlexibleInt64(int64(floatVal))
		return nil
	}

	return fmt.Errorf("cannot parse as int64: %s", string(data))
}

// Int64 returns int64 value
func (f FlexibleInt64) Int64() int64 {
	return int64(f)
}
