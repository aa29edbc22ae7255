package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lean-data/internal/model"
	"lean-data/internal/provider"
)

func TestIntervalTokens(t *testing.T) {
	for res, want := range map[model.Resolution]string{model.Minute: "1m", model.Hour: "1h", model.Daily: "1d"} {
		got, ok := Interval(res)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := Interval(model.Tick)
	assert.False(t, ok)
}

func klineRows(start time.Time, step time.Duration, n int) string {
	var rows []string
	for i := 0; i < n; i++ {
		ms := start.Add(time.Duration(i) * step).UnixMilli()
		rows = append(rows, fmt.Sprintf(`[%d,"67489.60","67860.00","67397.91","67706.94","7152.18916",%d,"0",1,"0","0","0"]`, ms, ms+59999))
	}
	return "[" + strings.Join(rows, ",") + "]"
}

func TestFetchDaily(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "1d", q.Get("interval"))
		assert.Equal(t, strconv.FormatInt(start.UnixMilli(), 10), q.Get("startTime"))
		assert.Equal(t, strconv.FormatInt(start.AddDate(0, 0, 7).UnixMilli()-1, 10), q.Get("endTime"))
		w.Write([]byte(klineRows(start, 24*time.Hour, 7)))
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL, RPM: 60000})
	out, err := p.Fetch(context.Background(), provider.Request{
		Symbol: p.Resolve("BTC-USDT"), Resolution: model.Daily,
		Start: start, End: time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	bars := out[0].Trades
	require.Len(t, bars, 7)
	assert.Equal(t, start, bars[0].Time)
	assert.Equal(t, 7152.18916, bars[0].Volume)
	assert.Equal(t, 67397.91, bars[0].Low)
}

func TestFetchMinutePaginates(t *testing.T) {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		startMs, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		from := time.UnixMilli(startMs).UTC()
		remaining := int(day.Add(24*time.Hour).Sub(from) / time.Minute)
		n := min(remaining, klineLimit)
		w.Write([]byte(klineRows(from, time.Minute, n)))
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL, RPM: 60000})
	out, err := p.Fetch(context.Background(), provider.Request{Symbol: p.Resolve("BTCUSDT"), Resolution: model.Minute, Start: day, End: day})
	require.NoError(t, err)
	bars := out[0].Trades
	assert.Len(t, bars, 1440)
	assert.Equal(t, 2, calls)
	for i := 1; i < len(bars); i++ {
		require.True(t, bars[i].Time.After(bars[i-1].Time))
	}
}

func TestParseKlinesRejectsShortRows(t *testing.T) {
	_, _, err := parseKlines([]byte(`[[1717200000000,"1","2"]]`))
	assert.Error(t, err)
}
