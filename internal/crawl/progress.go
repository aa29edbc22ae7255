package crawl

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lean-data/internal/canon"
	"lean-data/internal/model"
	"lean-data/internal/provider"
)

// ProgressUpdate is sent when a symbol download succeeds. Date is the calendar
// date of the last record written, YYYY-MM-DD.
type ProgressUpdate struct {
	Key  string
	Date string
}

// progressKey identifies a (source, symbol, resolution) in .lastday.json.
func progressKey(source, ticker string, res model.Resolution) string {
	return strings.ToLower(source) + "/" + strings.ToLower(ticker) + "/" + string(res)
}

// History answers when a symbol was last written. The manifest implements it.
type History interface {
	LastWritten(ctx context.Context, source, symbol, resolution string) (time.Time, error)
}

// fillProgress looks up tickers missing from d.progress in the history, so a
// lost or partial .lastday.json still resumes from what is on disk.
func (d *Downloader) fillProgress(ctx context.Context, dp provider.DataProvider, tickers []string, res model.Resolution) {
	source := dp.GetName()
	for _, t := range tickers {
		sym := dp.Resolve(t)
		key := progressKey(source, sym.Ticker, res)
		if _, ok := d.progress[key]; ok {
			continue
		}
		last, err := d.opts.History.LastWritten(ctx, source, sym.Ticker, string(res))
		if err != nil {
			slog.Warn("history lookup failed", "key", key, "error", err)
			continue
		}
		if last.IsZero() {
			continue
		}
		d.progress[key] = canon.DateIn(last.In(sym.Location()), time.UTC).Format(time.DateOnly)
		slog.Debug("resume point from history", "key", key, "date", d.progress[key])
	}
}

func loadProgress(path string) map[string]string {
	if path == "" {
		return make(map[string]string)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return make(map[string]string)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Warn("progress file unreadable, starting fresh", "path", path, "error", err)
		return make(map[string]string)
	}
	return m
}

// RunProgressWriter receives updates and persists them to path (run as goroutine).
// Later dates win; an update never moves a key backwards.
func RunProgressWriter(path string, updates <-chan ProgressUpdate) {
	m := loadProgress(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		slog.Warn("progress dir error", "error", err)
	}
	for u := range updates {
		if prev, ok := m[u.Key]; ok && prev >= u.Date {
			continue
		}
		m[u.Key] = u.Date
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			slog.Warn("progress marshal error", "error", err)
			continue
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			slog.Warn("progress write error", "error", err)
		}
	}
}
