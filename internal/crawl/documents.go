package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"lean-data/internal/model"
	"lean-data/internal/provider"
)

// DocumentSet selects which document families DownloadDocuments fetches.
type DocumentSet struct {
	Fundamentals bool
	Earnings     bool
	News         bool
	Options      bool
}

// Any reports whether at least one family is selected.
func (s DocumentSet) Any() bool {
	return s.Fundamentals || s.Earnings || s.News || s.Options
}

type docFetch struct {
	family string
	fetch  func(ctx context.Context, sym model.Symbol) ([]model.Document, error)
}

// families returns the selected fetchers dp actually implements.
func (s DocumentSet) families(dp provider.DataProvider, start, end time.Time, logger *slog.Logger) []docFetch {
	var out []docFetch
	add := func(want bool, family string, f func(context.Context, model.Symbol) ([]model.Document, error), ok bool) {
		switch {
		case !want:
		case !ok:
			logger.Info("source does not provide documents", "family", family)
		default:
			out = append(out, docFetch{family: family, fetch: f})
		}
	}
	fp, ok := dp.(provider.FundamentalsProvider)
	add(s.Fundamentals, "fundamentals", func(ctx context.Context, sym model.Symbol) ([]model.Document, error) {
		return fp.FetchFundamentals(ctx, sym)
	}, ok)
	ep, ok := dp.(provider.EarningsProvider)
	add(s.Earnings, "earnings", func(ctx context.Context, sym model.Symbol) ([]model.Document, error) {
		return ep.FetchEarnings(ctx, sym)
	}, ok)
	np, ok := dp.(provider.NewsProvider)
	add(s.News, "news", func(ctx context.Context, sym model.Symbol) ([]model.Document, error) {
		return np.FetchNews(ctx, sym, start, end)
	}, ok)
	op, ok := dp.(provider.OptionChainProvider)
	add(s.Options, "options", func(ctx context.Context, sym model.Symbol) ([]model.Document, error) {
		return op.FetchOptionChain(ctx, sym)
	}, ok)
	return out
}

// DownloadDocuments fetches the selected document families for each ticker and
// writes them as JSON. A partial result is written even when the fetch also
// reports an error.
func (d *Downloader) DownloadDocuments(ctx context.Context, dp provider.DataProvider, tickers []string, set DocumentSet, start, end time.Time) (Summary, error) {
	source := dp.GetName()
	logger := slog.With("source", source)
	sum := Summary{Source: source}
	fams := set.families(dp, start, end, logger)
	if len(fams) == 0 {
		return sum, nil
	}

	for i, t := range tickers {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sym := dp.Resolve(t)
		job := Job{Source: source, Ticker: t, Symbol: sym, From: start, To: end}
		sum.Symbols++
		var files int
		var size int64
		var reasons []string
		for _, f := range fams {
			docs, err := f.fetch(ctx, sym)
			if err != nil {
				reasons = append(reasons, f.family+": "+logFetchError(logger, job, err))
			}
			for _, doc := range docs {
				w, err := d.writer.WriteDocument(ctx, source, doc)
				if err != nil {
					logger.Error("document write failed", "ticker", t, "category", doc.Category, "name", doc.Name, "error", err)
					reasons = append(reasons, f.family+": "+err.Error())
					continue
				}
				files++
				size += w.Bytes
			}
		}
		sum.Files += files
		sum.Bytes += size
		if files > 0 {
			sum.Success++
			logger.Info("documents ok", "n", humanize.Comma(int64(i+1))+"/"+humanize.Comma(int64(len(tickers))), "ticker", t, "files", files, "size", humanize.Bytes(uint64(size)))
			d.mu.Lock()
			d.successList = appendSuccess(d.successList, source+"/"+sym.Ticker)
			d.mu.Unlock()
			continue
		}
		sum.Failed++
		reason := "no documents"
		if len(reasons) > 0 {
			reason = reasons[0]
		}
		d.recordFailure(job, reason)
	}
	logger.Info("documents done", "success", sum.Success, "failed", sum.Failed, "files", sum.Files, "size", humanize.Bytes(uint64(sum.Bytes)))
	return sum, nil
}
