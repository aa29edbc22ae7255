package yahoo

import (
	"encoding/json"
	"fmt"
	"time"

	"lean-data/internal/model"
	"lean-data/internal/provider/base"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		Currency             string `json:"currency"`
		InstrumentType       string `json:"instrumentType"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
		GMTOffset            int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// exchangeLocation loads the exchange zone named in the chart metadata, falling back
// to a fixed zone from the GMT offset.
func (r chartResult) exchangeLocation() *time.Location {
	if name := r.Meta.ExchangeTimezoneName; name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", r.Meta.GMTOffset)
}

// parseChart converts a chart payload to bars localized to loc. Date-based bars take
// their date on the exchange's calendar; rows with a null field are skipped.
func parseChart(body []byte, res model.Resolution, loc *time.Location) ([]model.TradeBar, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%s: parse chart: %w", Tag, err)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("%s: %s: %s: %w", Tag, e.Code, e.Description, base.ErrPermanent)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", Tag, base.ErrNoData)
	}
	r := resp.Chart.Result[0]
	if len(r.Timestamp) == 0 || len(r.Indicators.Quote) == 0 {
		return nil, nil
	}
	exch := r.exchangeLocation()
	q := r.Indicators.Quote[0]
	at := func(s []*float64, i int) (float64, bool) {
		if i >= len(s) || s[i] == nil {
			return 0, false
		}
		return *s[i], true
	}

	bars := make([]model.TradeBar, 0, len(r.Timestamp))
	for i, sec := range r.Timestamp {
		o, ok1 := at(q.Open, i)
		h, ok2 := at(q.High, i)
		l, ok3 := at(q.Low, i)
		c, ok4 := at(q.Close, i)
		if !(ok1 && ok2 && ok3 && ok4) {
			continue
		}
		v, _ := at(q.Volume, i)
		local := time.Unix(sec, 0).In(exch)
		var ts time.Time
		if res.IsDateBased() {
			ts = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		} else {
			ts = local.In(loc)
		}
		bars = append(bars, model.TradeBar{Time: ts, Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	return bars, nil
}
