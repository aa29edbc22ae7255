package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lean-data/internal/model"
)

func TestExpandSources(t *testing.T) {
	got, err := ExpandSources([]string{"Yahoo, fred", "yahoo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"yahoo", "fred"}, got)

	got, err = ExpandSources([]string{"all"})
	require.NoError(t, err)
	assert.Equal(t, VendorTags(), got)

	_, err = ExpandSources([]string{"yahoo,bloomberg"})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = ExpandSources(nil)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestOptionsValidate(t *testing.T) {
	o := Options{Sources: []string{"fred,all"}, Start: date(2024, 1, 1), End: date(2024, 2, 1)}
	require.NoError(t, o.Validate())
	assert.True(t, o.All)
	assert.False(t, o.SingleSource())
	assert.Equal(t, model.Daily, o.Resolution)

	o = Options{Sources: []string{"fred"}, Start: date(2024, 2, 1), End: date(2024, 1, 1)}
	assert.ErrorIs(t, o.Validate(), ErrConfig)

	o = Options{Sources: []string{"fred"}}
	assert.ErrorIs(t, o.Validate(), ErrConfig)
}

func TestTestWindowAndLimits(t *testing.T) {
	o := Options{Test: true, Start: date(2024, 1, 1), End: date(2024, 3, 31)}
	start, end := o.TestWindow()
	assert.Equal(t, date(2024, 3, 25), start)
	assert.Equal(t, date(2024, 3, 31), end)

	o.Start = date(2024, 3, 29)
	start, _ = o.TestWindow()
	assert.Equal(t, date(2024, 3, 29), start)

	assert.Equal(t, []string{"A", "B"}, o.limitSymbols([]string{"A", "B", "C"}))
	o.Test = false
	assert.Len(t, o.limitSymbols([]string{"A", "B", "C"}), 3)
}

func TestDefaultDates(t *testing.T) {
	start, end := DefaultDates(time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC))
	assert.Equal(t, date(2024, 6, 14), end)
	assert.Equal(t, date(2023, 6, 14), start)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
