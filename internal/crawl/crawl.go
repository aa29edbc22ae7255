package crawl

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"lean-data/internal/archive"
	"lean-data/internal/canon"
	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/provider/base"
	"lean-data/internal/validate"
)

// Job represents one download unit (symbol + date range) for one source.
type Job struct {
	Source string
	Ticker string
	Symbol model.Symbol
	From   time.Time
	To     time.Time
}

// DateRange renders the job range as YYYY-MM-DD..YYYY-MM-DD.
func (j Job) DateRange() string {
	return j.From.Format(time.DateOnly) + ".." + j.To.Format(time.DateOnly)
}

// JobResult is the outcome of one job.
type JobResult struct {
	Ok     bool
	Job    Job
	Reason string
	Bars   int
	Files  int
	Bytes  int64
	Last   time.Time
}

// Summary totals one Download* call.
type Summary struct {
	Source  string
	Symbols int
	Success int
	Failed  int
	Skipped int
	Files   int
	Bars    int
	Bytes   int64
}

// Add merges o into s.
func (s *Summary) Add(o Summary) {
	s.Symbols += o.Symbols
	s.Success += o.Success
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.Files += o.Files
	s.Bars += o.Bars
	s.Bytes += o.Bytes
}

// Options configures a Downloader.
type Options struct {
	// ReportDir receives .lastrun.success.json and .lastrun.failed.json.
	ReportDir string
	// ProgressPath is the .lastday.json file; empty disables progress tracking.
	ProgressPath string
	RunID        string
	// Resume starts each symbol the day after its recorded progress.
	Resume bool
	// History backs Resume for symbols missing from the progress file.
	History   History
	Heartbeat time.Duration
}

// Downloader drives adapters symbol by symbol: fetch, clean, write.
// Calls are sequential; the adapter's governor is the only pacing.
type Downloader struct {
	writer *archive.Writer
	opts   Options

	progress map[string]string
	updates  chan ProgressUpdate
	wg       sync.WaitGroup

	mu          sync.Mutex
	successList []string
	failedList  []failedEntry
}

// NewDownloader creates a Downloader writing through w. Close must be called to
// flush progress and write the run report.
func NewDownloader(w *archive.Writer, opts Options) *Downloader {
	d := &Downloader{
		writer:   w,
		opts:     opts,
		progress: loadProgress(opts.ProgressPath),
	}
	if opts.ProgressPath != "" {
		d.updates = make(chan ProgressUpdate, 256)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			RunProgressWriter(opts.ProgressPath, d.updates)
		}()
	}
	return d
}

// Close flushes progress and writes the run report.
func (d *Downloader) Close() error {
	if d.updates != nil {
		close(d.updates)
		d.wg.Wait()
		d.updates = nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.successList) == 0 && len(d.failedList) == 0 {
		return nil
	}
	if err := writeRunReport(d.opts.ReportDir, d.opts.RunID, d.successList, d.failedList); err != nil {
		return err
	}
	slog.Info("run report saved", "run_id", d.opts.RunID, "success", len(d.successList), "failed", len(d.failedList))
	return nil
}

// FilterTickersToCrawl builds jobs for tickers over [start, end]. With resume, a
// symbol with recorded progress starts the day after it; symbols already up to
// date are left out.
func FilterTickersToCrawl(dp provider.DataProvider, tickers []string, res model.Resolution, start, end time.Time, progress map[string]string, resume bool) []Job {
	source := dp.GetName()
	var jobs []Job
	for _, t := range tickers {
		sym := dp.Resolve(t)
		from := canon.DateIn(start, time.UTC)
		to := canon.DateIn(end, time.UTC)
		if resume {
			if last, ok := progress[progressKey(source, sym.Ticker, res)]; ok {
				if d, err := time.ParseInLocation(time.DateOnly, last, time.UTC); err == nil && !d.Before(from) {
					from = d.AddDate(0, 0, 1)
				}
			}
		}
		if from.After(to) {
			slog.Debug("symbol up to date, skip", "source", source, "ticker", t, "resolution", res)
			continue
		}
		jobs = append(jobs, Job{Source: source, Ticker: t, Symbol: sym, From: from, To: to})
	}
	return jobs
}

// DownloadSymbols fetches every ticker from dp and writes whatever survives
// validation. A failing symbol is logged and the loop continues; only context
// cancellation stops it early.
func (d *Downloader) DownloadSymbols(ctx context.Context, dp provider.DataProvider, tickers []string, res model.Resolution, start, end time.Time) (Summary, error) {
	return d.download(ctx, dp, "", tickers, res, start, end)
}

// DownloadEquitySymbols downloads the tickers dp resolves to equities.
func (d *Downloader) DownloadEquitySymbols(ctx context.Context, dp provider.DataProvider, tickers []string, res model.Resolution, start, end time.Time) (Summary, error) {
	return d.download(ctx, dp, model.Equity, tickers, res, start, end)
}

// DownloadCryptoSymbols downloads the tickers dp resolves to crypto pairs.
func (d *Downloader) DownloadCryptoSymbols(ctx context.Context, dp provider.DataProvider, tickers []string, res model.Resolution, start, end time.Time) (Summary, error) {
	return d.download(ctx, dp, model.Crypto, tickers, res, start, end)
}

// DownloadFuturesSymbols downloads the tickers dp resolves to futures.
func (d *Downloader) DownloadFuturesSymbols(ctx context.Context, dp provider.DataProvider, tickers []string, res model.Resolution, start, end time.Time) (Summary, error) {
	return d.download(ctx, dp, model.Future, tickers, res, start, end)
}

// DownloadForexSymbols downloads the tickers dp resolves to currency pairs.
func (d *Downloader) DownloadForexSymbols(ctx context.Context, dp provider.DataProvider, tickers []string, res model.Resolution, start, end time.Time) (Summary, error) {
	return d.download(ctx, dp, model.Forex, tickers, res, start, end)
}

// DownloadIndexSymbols downloads the tickers dp resolves to indices.
func (d *Downloader) DownloadIndexSymbols(ctx context.Context, dp provider.DataProvider, tickers []string, res model.Resolution, start, end time.Time) (Summary, error) {
	return d.download(ctx, dp, model.Index, tickers, res, start, end)
}

// DownloadEconomicSymbols downloads the tickers dp resolves to economic series.
func (d *Downloader) DownloadEconomicSymbols(ctx context.Context, dp provider.DataProvider, tickers []string, res model.Resolution, start, end time.Time) (Summary, error) {
	return d.download(ctx, dp, model.Economic, tickers, res, start, end)
}

// DownloadOptionSymbols downloads the tickers dp resolves to option contracts.
func (d *Downloader) DownloadOptionSymbols(ctx context.Context, dp provider.DataProvider, tickers []string, res model.Resolution, start, end time.Time) (Summary, error) {
	return d.download(ctx, dp, model.Option, tickers, res, start, end)
}

// DownloadBondSymbols downloads the tickers dp resolves to bond yields.
func (d *Downloader) DownloadBondSymbols(ctx context.Context, dp provider.DataProvider, tickers []string, res model.Resolution, start, end time.Time) (Summary, error) {
	return d.download(ctx, dp, model.Bond, tickers, res, start, end)
}

// DownloadCFDSymbols downloads the tickers dp resolves to CFDs.
func (d *Downloader) DownloadCFDSymbols(ctx context.Context, dp provider.DataProvider, tickers []string, res model.Resolution, start, end time.Time) (Summary, error) {
	return d.download(ctx, dp, model.CFD, tickers, res, start, end)
}

func servesClass(dp provider.DataProvider, class model.AssetClass) bool {
	for _, c := range dp.AssetClasses() {
		if c == class {
			return true
		}
	}
	return false
}

// download is the shared loop. An empty class accepts every resolved symbol.
func (d *Downloader) download(ctx context.Context, dp provider.DataProvider, class model.AssetClass, tickers []string, res model.Resolution, start, end time.Time) (Summary, error) {
	source := dp.GetName()
	logger := slog.With("source", source)
	sum := Summary{Source: source}

	if class != "" && !servesClass(dp, class) {
		logger.Warn("source does not serve asset class, skip", "class", class)
		return sum, nil
	}
	if !model.Supports(dp.SupportedResolutions(), res) {
		logger.Warn("source does not serve resolution, skip", "resolution", res, "supported", dp.SupportedResolutions())
		return sum, nil
	}

	if d.opts.Resume && d.opts.History != nil {
		d.fillProgress(ctx, dp, tickers, res)
	}
	jobs := FilterTickersToCrawl(dp, tickers, res, start, end, d.progress, d.opts.Resume)
	if class != "" {
		kept := jobs[:0]
		for _, j := range jobs {
			if j.Symbol.Class != class {
				logger.Debug("ticker not in asset class, skip", "ticker", j.Ticker, "class", j.Symbol.Class, "want", class)
				continue
			}
			kept = append(kept, j)
		}
		jobs = kept
	}
	sum.Skipped = len(tickers) - len(jobs)
	if len(jobs) == 0 {
		logger.Info("no jobs to download, skip", "tickers", len(tickers))
		return sum, nil
	}
	logger.Info("jobs to download", "jobs", len(jobs), "resolution", res, "skipped", sum.Skipped)

	t := &tally{total: len(jobs)}
	if d.opts.Heartbeat > 0 {
		hbCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go runHeartbeat(hbCtx, d.opts.Heartbeat, t, logger)
	}

	began := time.Now()
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			logger.Warn("download interrupted", "done", i, "total", len(jobs))
			return sum, err
		}
		r := d.runJob(ctx, dp, job, res, logger)
		t.add(r)
		sum.Symbols++
		if r.Ok {
			sum.Success++
			sum.Files += r.Files
			sum.Bars += r.Bars
			sum.Bytes += r.Bytes
			logger.Info("symbol ok", "n", humanize.Comma(int64(i+1))+"/"+humanize.Comma(int64(len(jobs))), "ticker", job.Ticker,
				"date_range", job.DateRange(), "bars", r.Bars, "files", r.Files, "size", humanize.Bytes(uint64(r.Bytes)))
			d.recordSuccess(job, res, r.Last)
		} else {
			sum.Failed++
			d.recordFailure(job, r.Reason)
		}
	}

	logger.Info("source done", "success", sum.Success, "failed", sum.Failed, "files", sum.Files,
		"bars", humanize.Comma(int64(sum.Bars)), "size", humanize.Bytes(uint64(sum.Bytes)), "elapsed", time.Since(began).Round(time.Millisecond))
	d.mu.Lock()
	if n := len(d.failedList); n > 0 {
		logger.Info("summary failed", "count", n, "reasons", joinFailedReasons(d.failedList))
	}
	d.mu.Unlock()
	return sum, nil
}

// runJob performs one fetch and writes each returned series. A write error
// abandons the rest of the symbol.
func (d *Downloader) runJob(ctx context.Context, dp provider.DataProvider, job Job, res model.Resolution, logger *slog.Logger) JobResult {
	r := JobResult{Job: job}
	req := provider.Request{Symbol: job.Symbol, VendorTicker: job.Ticker, Resolution: res, Start: job.From, End: job.To}
	batch, err := dp.Fetch(ctx, req)
	if err != nil {
		r.Reason = logFetchError(logger, job, err)
		return r
	}

	for _, s := range batch {
		cleaned, st := validate.Clean(s)
		if st.Invalid > 0 || st.Duplicates > 0 {
			logger.Warn("records dropped", "ticker", job.Ticker, "kind", s.Kind, "invalid", st.Invalid, "duplicates", st.Duplicates, "kept", st.Kept())
		}
		written, err := d.writer.WriteSeries(ctx, job.Source, cleaned)
		for _, w := range written {
			r.Files++
			r.Bytes += w.Bytes
			if w.Last.After(r.Last) {
				r.Last = w.Last
			}
		}
		if err != nil {
			logger.Error("write failed, symbol abandoned", "ticker", job.Ticker, "error", err)
			r.Reason = err.Error()
			return r
		}
		r.Bars += cleaned.Len()
	}
	if r.Files == 0 {
		logger.Info("no data", "ticker", job.Ticker, "date_range", job.DateRange())
		r.Reason = "no data"
		return r
	}
	r.Ok = true
	return r
}

// logFetchError logs err at a level matching its class and returns the reason.
func logFetchError(logger *slog.Logger, job Job, err error) string {
	attrs := []any{"ticker", job.Ticker, "date_range", job.DateRange(), "error", err}
	switch {
	case errors.Is(err, base.ErrNoData):
		logger.Info("no data", attrs...)
		return "no data"
	case errors.Is(err, base.ErrUnsupportedResolution), errors.Is(err, base.ErrUnsupportedAssetClass):
		logger.Warn("unsupported request", attrs...)
	case errors.Is(err, base.ErrPermanent):
		logger.Warn("fetch rejected", attrs...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("fetch cancelled", attrs...)
	default:
		logger.Error("fetch failed", attrs...)
	}
	return err.Error()
}

func (d *Downloader) recordSuccess(job Job, res model.Resolution, last time.Time) {
	d.mu.Lock()
	d.successList = appendSuccess(d.successList, job.Source+"/"+job.Symbol.Ticker)
	d.mu.Unlock()
	if last.IsZero() {
		return
	}
	day := canon.DateIn(last.In(job.Symbol.Location()), time.UTC).Format(time.DateOnly)
	key := progressKey(job.Source, job.Symbol.Ticker, res)
	d.progress[key] = day
	if d.updates != nil {
		d.updates <- ProgressUpdate{Key: key, Date: day}
	}
}

func (d *Downloader) recordFailure(job Job, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failedList = append(d.failedList, failedEntry{Source: job.Source, Ticker: job.Ticker, DateRange: job.DateRange(), Reason: reason})
}
