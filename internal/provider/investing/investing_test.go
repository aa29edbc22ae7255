package investing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

func req(sym model.Symbol) provider.Request {
	return provider.Request{Symbol: sym, Resolution: model.Daily,
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)}
}

func TestResolve(t *testing.T) {
	p := New(Config{})
	assert.Equal(t, model.Index, p.Resolve("SPX").Class)
	assert.Equal(t, model.CFD, p.Resolve("XAU/USD").Class)
	assert.Equal(t, "investing", p.Resolve("SPX").Venue)
}

func TestFetchTableInstrument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/financialdata/historical/166", r.URL.Path)
		assert.Equal(t, "www", r.Header.Get("domain-id"))
		assert.Equal(t, "Daily", r.URL.Query().Get("time-frame"))
		fmt.Fprint(w, `{"data":[
			{"rowDateTimestamp":"2024-01-03T00:00:00Z","last_closeRaw":4704.81,"last_openRaw":4725.07,"last_maxRaw":4729.29,"last_minRaw":4699.71,"volumeRaw":0},
			{"rowDateTimestamp":"2024-01-02T00:00:00Z","last_close":"4,742.83","last_open":"4,745.20","last_max":"4,754.33","last_min":"4,722.67"}]}`)
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL, RPM: 60000})
	out, err := p.Fetch(context.Background(), req(p.Resolve("SPX")))
	require.NoError(t, err)
	bars := out[0].Trades
	require.Len(t, bars, 2)
	ny := model.LoadLocation("America/New_York")
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, ny), bars[0].Time)
	assert.Equal(t, 4742.83, bars[0].Close)
	assert.Equal(t, 4704.81, bars[1].Close)
}

func TestFetchUnknownInstrumentIsStub(t *testing.T) {
	p := New(Config{BaseURL: "http://127.0.0.1:0", RPM: 60000})
	out, err := p.Fetch(context.Background(), req(p.Resolve("UNKNOWN")))
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestFetchEmptyIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL, RPM: 60000})
	_, err := p.Fetch(context.Background(), req(p.Resolve("DAX")))
	assert.ErrorIs(t, err, base.ErrNoData)
}
