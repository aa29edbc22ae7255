package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lean-data/internal/archive"
	"lean-data/internal/canon"
	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
)

type fakeProvider struct {
	base.Info
	errs map[string]error
	reqs []provider.Request
}

func newFake(classes ...model.AssetClass) *fakeProvider {
	if len(classes) == 0 {
		classes = []model.AssetClass{model.Equity, model.Crypto}
	}
	return &fakeProvider{
		Info: base.Info{Tag: "fake", RPM: 60000, Resolutions: []model.Resolution{model.Daily}, Classes: classes},
		errs: map[string]error{},
	}
}

func (f *fakeProvider) Resolve(ticker string) model.Symbol {
	if strings.Contains(ticker, "-") {
		return f.Symbol(ticker, model.Crypto)
	}
	return f.Symbol(ticker, model.Equity)
}

// Fetch returns one daily bar per weekday in the request range.
func (f *fakeProvider) Fetch(_ context.Context, req provider.Request) ([]model.Series, error) {
	f.reqs = append(f.reqs, req)
	if err := f.errs[req.Ticker()]; err != nil {
		return nil, err
	}
	loc := req.Symbol.Location()
	var bars []model.TradeBar
	for d := req.Start; !d.After(req.End); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		at := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		bars = append(bars, model.TradeBar{Time: at, Open: 10, High: 12, Low: 9, Close: 11, Volume: 1000})
	}
	return []model.Series{model.NewTradeSeries(req.Symbol, req.Resolution, bars)}, nil
}

type fakeDocs struct {
	*fakeProvider
}

func (f fakeDocs) FetchFundamentals(_ context.Context, sym model.Symbol) ([]model.Document, error) {
	doc, err := base.NewDocument(sym, "fundamentals", "overview", []byte(`{"Symbol":"`+sym.Ticker+`"}`))
	if err != nil {
		return nil, err
	}
	return []model.Document{doc}, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newDownloader(t *testing.T, root string, resume bool) *Downloader {
	t.Helper()
	w := archive.NewWriter(archive.NewLayout(root, nil), nil, nil)
	return NewDownloader(w, Options{
		ReportDir:    root,
		ProgressPath: filepath.Join(root, ".lastday.json"),
		RunID:        "run-1",
		Resume:       resume,
	})
}

func TestDownloadSymbolsContinuesAfterFailure(t *testing.T) {
	root := t.TempDir()
	fp := newFake()
	fp.errs["MSFT"] = fmt.Errorf("fake: %w", base.ErrPermanent)
	d := newDownloader(t, root, false)

	sum, err := d.DownloadSymbols(context.Background(), fp, []string{"MSFT", "AAPL"}, model.Daily, day(2024, 1, 2), day(2024, 1, 5))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.Equal(t, 2, sum.Symbols)
	assert.Equal(t, 1, sum.Success)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Files)
	assert.Equal(t, 4, sum.Bars)
	assert.FileExists(t, filepath.Join(root, "equity", "fake", "daily", "aapl.zip"))

	progress := loadProgress(filepath.Join(root, ".lastday.json"))
	assert.Equal(t, map[string]string{"fake/aapl/daily": "2024-01-05"}, progress)

	data, err := os.ReadFile(filepath.Join(root, ".lastrun.failed.json"))
	require.NoError(t, err)
	var failed failedReport
	require.NoError(t, json.Unmarshal(data, &failed))
	assert.Equal(t, "run-1", failed.RunID)
	require.Len(t, failed.Failed, 1)
	assert.Equal(t, "MSFT", failed.Failed[0].Ticker)
	assert.Equal(t, "2024-01-02..2024-01-05", failed.Failed[0].DateRange)

	data, err = os.ReadFile(filepath.Join(root, ".lastrun.success.json"))
	require.NoError(t, err)
	var success successReport
	require.NoError(t, json.Unmarshal(data, &success))
	assert.Equal(t, []string{"fake/AAPL"}, success.Symbols)
}

func TestDownloadSymbolsNoDataIsFailure(t *testing.T) {
	root := t.TempDir()
	fp := newFake()
	fp.errs["AAPL"] = fmt.Errorf("fake: %w", base.ErrNoData)
	d := newDownloader(t, root, false)

	sum, err := d.DownloadSymbols(context.Background(), fp, []string{"AAPL"}, model.Daily, day(2024, 1, 2), day(2024, 1, 5))
	require.NoError(t, err)
	require.NoError(t, d.Close())
	assert.Equal(t, 0, sum.Files)
	assert.Equal(t, 1, sum.Failed)
	assert.NoFileExists(t, filepath.Join(root, ".lastrun.success.json"))
}

func TestDownloadSymbolsResume(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".lastday.json"), []byte(`{"fake/msft/daily": "2024-01-05"}`), 0644))

	d := newDownloader(t, root, false)
	_, err := d.DownloadSymbols(context.Background(), newFake(), []string{"AAPL"}, model.Daily, day(2024, 1, 2), day(2024, 1, 3))
	require.NoError(t, err)
	require.NoError(t, d.Close())
	assert.Equal(t, "2024-01-03", loadProgress(filepath.Join(root, ".lastday.json"))["fake/aapl/daily"])

	fp := newFake()
	d = newDownloader(t, root, true)
	sum, err := d.DownloadSymbols(context.Background(), fp, []string{"AAPL", "MSFT"}, model.Daily, day(2024, 1, 2), day(2024, 1, 5))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	require.Len(t, fp.reqs, 1)
	assert.Equal(t, "AAPL", fp.reqs[0].Ticker())
	assert.Equal(t, day(2024, 1, 4), fp.reqs[0].Start)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, "2024-01-05", loadProgress(filepath.Join(root, ".lastday.json"))["fake/aapl/daily"])

	_, data, err := canon.ReadArchive(filepath.Join(root, "equity", "fake", "daily", "aapl.zip"))
	require.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, rows, 4, "resumed days are appended to the archived ones")
	assert.True(t, strings.HasPrefix(rows[0], "20240102 00:00,"))
	assert.True(t, strings.HasPrefix(rows[3], "20240105 00:00,"))
}

type fakeHistory map[string]time.Time

func (h fakeHistory) LastWritten(_ context.Context, source, symbol, resolution string) (time.Time, error) {
	return h[source+"/"+symbol+"/"+resolution], nil
}

func TestResumeFallsBackToHistory(t *testing.T) {
	root := t.TempDir()
	ny := model.LoadLocation("America/New_York")
	w := archive.NewWriter(archive.NewLayout(root, nil), nil, nil)
	d := NewDownloader(w, Options{
		ReportDir:    root,
		ProgressPath: filepath.Join(root, ".lastday.json"),
		Resume:       true,
		History:      fakeHistory{"fake/AAPL/daily": time.Date(2024, 1, 3, 0, 0, 0, 0, ny)},
	})

	fp := newFake()
	_, err := d.DownloadSymbols(context.Background(), fp, []string{"AAPL", "MSFT"}, model.Daily, day(2024, 1, 2), day(2024, 1, 5))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	require.Len(t, fp.reqs, 2)
	assert.Equal(t, day(2024, 1, 4), fp.reqs[0].Start, "AAPL resumes after the recorded date")
	assert.Equal(t, day(2024, 1, 2), fp.reqs[1].Start, "MSFT has no history")
}

func TestDownloadSymbolsWithoutResumeIgnoresProgress(t *testing.T) {
	progress := map[string]string{"fake/aapl/daily": "2024-01-05"}
	jobs := FilterTickersToCrawl(newFake(), []string{"AAPL"}, model.Daily, day(2024, 1, 2), day(2024, 1, 5), progress, false)
	require.Len(t, jobs, 1)
	assert.Equal(t, day(2024, 1, 2), jobs[0].From)

	jobs = FilterTickersToCrawl(newFake(), []string{"AAPL"}, model.Minute, day(2024, 1, 2), day(2024, 1, 5), progress, true)
	require.Len(t, jobs, 1, "progress is tracked per resolution")
}

func TestDownloadByAssetClass(t *testing.T) {
	root := t.TempDir()
	fp := newFake()
	d := newDownloader(t, root, false)

	sum, err := d.DownloadCryptoSymbols(context.Background(), fp, []string{"AAPL", "BTC-USD"}, model.Daily, day(2024, 1, 2), day(2024, 1, 3))
	require.NoError(t, err)
	require.Len(t, fp.reqs, 1)
	assert.Equal(t, "BTC-USD", fp.reqs[0].VendorTicker)
	assert.Equal(t, 1, sum.Success)
	assert.Equal(t, 1, sum.Skipped)
	assert.FileExists(t, filepath.Join(root, "crypto", "fake", "daily", "btcusd.zip"))

	sum, err = d.DownloadFuturesSymbols(context.Background(), fp, []string{"ES"}, model.Daily, day(2024, 1, 2), day(2024, 1, 3))
	require.NoError(t, err)
	assert.Zero(t, sum.Symbols)
	assert.Len(t, fp.reqs, 1)

	sum, err = d.DownloadEquitySymbols(context.Background(), fp, []string{"AAPL"}, model.Minute, day(2024, 1, 2), day(2024, 1, 3))
	require.NoError(t, err)
	assert.Zero(t, sum.Symbols, "unsupported resolution is skipped")
	require.NoError(t, d.Close())
}

func TestDownloadSymbolsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fp := newFake()
	d := newDownloader(t, t.TempDir(), false)
	_, err := d.DownloadSymbols(ctx, fp, []string{"AAPL"}, model.Daily, day(2024, 1, 2), day(2024, 1, 3))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fp.reqs)
	require.NoError(t, d.Close())
}

func TestDownloadDocuments(t *testing.T) {
	root := t.TempDir()
	dp := fakeDocs{newFake()}
	d := newDownloader(t, root, false)

	set := DocumentSet{Fundamentals: true, News: true}
	require.True(t, set.Any())
	sum, err := d.DownloadDocuments(context.Background(), dp, []string{"AAPL"}, set, day(2024, 1, 2), day(2024, 1, 3))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.Equal(t, 1, sum.Files)
	data, err := os.ReadFile(filepath.Join(root, "equity", "fake", "fundamentals", "aapl_overview.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Symbol":"AAPL"}`, string(data))

	sum, err = d.DownloadDocuments(context.Background(), newFake(), []string{"AAPL"}, set, day(2024, 1, 2), day(2024, 1, 3))
	require.NoError(t, err)
	assert.Zero(t, sum.Symbols)
}

func TestJoinFailedReasons(t *testing.T) {
	assert.Empty(t, joinFailedReasons(nil))
	two := []failedEntry{{Source: "a", Ticker: "X", Reason: "boom"}, {Source: "a", Ticker: "Y", Reason: "no data"}}
	assert.Equal(t, "a/X: boom; a/Y: no data", joinFailedReasons(two))

	var many []failedEntry
	for i := 0; i < 9; i++ {
		many = append(many, failedEntry{Source: "s", Ticker: fmt.Sprintf("T%d", i), Reason: "r"})
	}
	assert.True(t, strings.HasSuffix(joinFailedReasons(many), "(+4 more)"))
}

func TestRunProgressWriterKeepsLatestDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p", ".lastday.json")
	updates := make(chan ProgressUpdate, 4)
	updates <- ProgressUpdate{Key: "k", Date: "2024-01-05"}
	updates <- ProgressUpdate{Key: "k", Date: "2024-01-03"}
	close(updates)
	RunProgressWriter(path, updates)
	assert.Equal(t, "2024-01-05", loadProgress(path)["k"])
}

func TestProgressKeepsEveryUpdate(t *testing.T) {
	root := t.TempDir()
	d := newDownloader(t, root, false)
	ny := model.LoadLocation("America/New_York")
	for i := 0; i < 600; i++ {
		sym := model.Symbol{Ticker: fmt.Sprintf("T%04d", i), Class: model.Equity, Venue: "fake"}
		d.recordSuccess(Job{Source: "fake", Ticker: sym.Ticker, Symbol: sym}, model.Daily, time.Date(2024, 1, 2, 0, 0, 0, 0, ny))
	}
	require.NoError(t, d.Close())

	progress := loadProgress(filepath.Join(root, ".lastday.json"))
	assert.Len(t, progress, 600)
	assert.Equal(t, "2024-01-02", progress["fake/t0599/daily"])
}
