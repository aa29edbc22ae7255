package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"lean-data/internal/crawl"
	"lean-data/internal/model"
	"lean-data/internal/provider"
	"lean-data/internal/tickers"
)

// Exit codes returned by Runner.Run.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

// Phase is a state of the run.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseValidatingConfig Phase = "validating_config"
	PhaseDispatch         Phase = "dispatch"
	PhaseFetchLoop        Phase = "fetch_loop"
	PhaseWrite            Phase = "write"
	PhaseDone             Phase = "done"
)

// Runner drives sources one after another through the Downloader.
type Runner struct {
	Config     *Config
	Downloader *crawl.Downloader
	Universe   tickers.Universe
	// NewProvider builds an adapter by tag; tests replace it.
	NewProvider func(cfg *Config, tag string) (provider.DataProvider, error)

	phase Phase
}

// NewRunner creates a Runner using the registry factory.
func NewRunner(cfg *Config, d *crawl.Downloader, u tickers.Universe) *Runner {
	return &Runner{Config: cfg, Downloader: d, Universe: u, NewProvider: NewProvider, phase: PhaseIdle}
}

// Phase returns the current state.
func (r *Runner) Phase() Phase { return r.phase }

func (r *Runner) transition(p Phase, attrs ...any) {
	slog.Info("phase", append([]any{"from", r.phase, "to", p}, attrs...)...)
	r.phase = p
}

// Run executes opts and returns the process exit code: 0 when any archive was
// written, 1 on configuration errors or when nothing was produced, 130 when ctx
// was cancelled.
func (r *Runner) Run(ctx context.Context, opts Options) int {
	r.transition(PhaseValidatingConfig)
	if err := opts.Validate(); err != nil {
		slog.Error("invalid options", "error", err)
		return ExitFailure
	}
	var sources []string
	for _, tag := range opts.Sources {
		if err := r.Config.RequireCredentials(tag); err != nil {
			if !opts.All {
				slog.Error("missing credentials", "source", tag, "error", err)
				return ExitFailure
			}
			slog.Warn("source skipped, credentials missing", "source", tag, "error", err)
			continue
		}
		sources = append(sources, tag)
	}
	if len(sources) == 0 {
		slog.Error("no source can run")
		return ExitFailure
	}

	start, end := opts.Start, opts.End
	if opts.Test {
		start, end = opts.TestWindow()
		slog.Info("test mode", "symbols_per_list", testSymbols, "start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly))
	}

	var total crawl.Summary
	began := time.Now()
	for _, tag := range sources {
		if ctx.Err() != nil {
			break
		}
		sum, err := r.runSource(ctx, opts, tag, start, end)
		total.Add(sum)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		case opts.SingleSource():
			slog.Error("source failed", "source", tag, "error", err)
			r.transition(PhaseDone, "files", total.Files)
			return ExitFailure
		default:
			slog.Error("source failed, continuing", "source", tag, "error", err)
		}
	}

	r.transition(PhaseDone, "sources", len(sources), "files", total.Files, "failed", total.Failed,
		"bars", humanize.Comma(int64(total.Bars)), "size", humanize.Bytes(uint64(total.Bytes)), "elapsed", time.Since(began).Round(time.Second))
	if ctx.Err() != nil {
		slog.Warn("interrupted; archives written so far are kept", "files", total.Files)
		return ExitInterrupted
	}
	if total.Files == 0 {
		slog.Error("no data produced")
		return ExitFailure
	}
	return ExitOK
}

// runSource is one per-source pass: dispatch, fetch loop, write.
func (r *Runner) runSource(ctx context.Context, opts Options, tag string, start, end time.Time) (crawl.Summary, error) {
	r.transition(PhaseDispatch, "source", tag)
	dp, err := r.NewProvider(r.Config, tag)
	if err != nil {
		return crawl.Summary{Source: tag}, err
	}
	defer func() {
		if err := dp.Close(); err != nil {
			slog.Warn("provider close", "source", tag, "error", err)
		}
	}()
	v, _ := LookupVendor(tag)
	lists := r.symbolLists(v, opts)

	r.transition(PhaseFetchLoop, "source", tag, "resolution", opts.Resolution, "lists", len(lists))
	var sum crawl.Summary
	var all []string
	for _, l := range lists {
		all = append(all, l.tickers...)
		slog.Info("symbol list", "source", tag, "class", l.class, "symbols", len(l.tickers))
		s, err := l.download(ctx, dp, l.tickers, opts.Resolution, start, end)
		sum.Add(s)
		if err != nil {
			return sum, err
		}
	}
	if opts.Documents.Any() {
		s, err := r.Downloader.DownloadDocuments(ctx, dp, tickers.Unique(all), opts.Documents, start, end)
		sum.Add(s)
		if err != nil {
			return sum, err
		}
	}

	r.transition(PhaseWrite, "source", tag, "files", sum.Files, "size", humanize.Bytes(uint64(sum.Bytes)))
	return sum, nil
}

type symbolList struct {
	class    model.AssetClass
	tickers  []string
	download func(ctx context.Context, dp provider.DataProvider, tickers []string, res model.Resolution, start, end time.Time) (crawl.Summary, error)
}

// symbolLists returns what to download for v: the user's list for the vendor as
// one unfiltered list, else one list per asset class of the universe.
func (r *Runner) symbolLists(v Vendor, opts Options) []symbolList {
	if list := opts.Symbols[v.Tag]; len(list) > 0 {
		return []symbolList{{tickers: opts.limitSymbols(list), download: r.Downloader.DownloadSymbols}}
	}
	var out []symbolList
	for _, c := range v.UniverseClasses(r.Universe) {
		out = append(out, symbolList{
			class:    c,
			tickers:  opts.limitSymbols(v.Symbols(r.Universe, c)),
			download: r.classDownload(c),
		})
	}
	return out
}

func (r *Runner) classDownload(c model.AssetClass) func(context.Context, provider.DataProvider, []string, model.Resolution, time.Time, time.Time) (crawl.Summary, error) {
	d := r.Downloader
	switch c {
	case model.Equity:
		return d.DownloadEquitySymbols
	case model.Crypto:
		return d.DownloadCryptoSymbols
	case model.Future:
		return d.DownloadFuturesSymbols
	case model.Forex:
		return d.DownloadForexSymbols
	case model.Index:
		return d.DownloadIndexSymbols
	case model.Economic:
		return d.DownloadEconomicSymbols
	case model.Option:
		return d.DownloadOptionSymbols
	case model.Bond:
		return d.DownloadBondSymbols
	case model.CFD:
		return d.DownloadCFDSymbols
	}
	return d.DownloadSymbols
}
