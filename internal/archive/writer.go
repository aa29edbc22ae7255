package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"lean-data/internal/canon"
	"lean-data/internal/manifest"
	"lean-data/internal/model"
	"lean-data/internal/saver"
)

// Recorder receives one entry per file written.
type Recorder interface {
	Record(ctx context.Context, e manifest.Entry) error
}

var _ Recorder = (*manifest.Store)(nil)

// Written describes one file produced by the writer.
type Written struct {
	Path  string
	Rows  int
	Bytes int64
	Kind  model.Kind
	First time.Time
	Last  time.Time
}

// Writer persists cleaned series and documents under a Layout.
// Mirror and Ledger are optional.
type Writer struct {
	Layout Layout
	Mirror saver.PacketSaver
	Ledger Recorder
	RunID  string
}

// NewWriter creates a writer rooted at layout.
func NewWriter(layout Layout, mirror saver.PacketSaver, ledger Recorder) *Writer {
	return &Writer{Layout: layout, Mirror: mirror, Ledger: ledger}
}

// WriteSeries writes s, which must already be cleaned (sorted, deduplicated).
// Per-day layouts produce one file per calendar date in the symbol's timezone;
// otherwise a single archive holds every record, and records already archived
// outside s's time span are kept. Per-day files are replaced. An empty series
// writes nothing.
func (w *Writer) WriteSeries(ctx context.Context, source string, s model.Series) ([]Written, error) {
	if s.Len() == 0 {
		return nil, nil
	}
	var parts []dayPart
	if PerDay(s.Symbol, s.Resolution) {
		parts = splitByDay(s)
	} else {
		path := w.Layout.SeriesPath(s.Symbol, s.Resolution, s.Kind, time.Time{})
		merged, kept, err := mergeExisting(path, s)
		if err != nil {
			return nil, err
		}
		if kept > 0 {
			slog.Debug("kept archived records", "path", path, "kept", kept, "new", s.Len())
		}
		s = merged
		parts = []dayPart{{series: s}}
	}

	var out []Written
	for _, p := range parts {
		path := w.Layout.SeriesPath(s.Symbol, s.Resolution, s.Kind, p.day)
		rows, err := canon.RenderSeries(p.series)
		if err != nil {
			return out, fmt.Errorf("render %s: %w", path, err)
		}
		if s.Symbol.Class == model.Future {
			err = canon.WriteCSVFile(rows, path)
		} else {
			err = canon.WriteArchive(rows, path, canon.InnerName(s.Symbol, s.Resolution, s.Kind))
		}
		if err != nil {
			return out, err
		}
		times := p.series.Times()
		wr := Written{Path: path, Rows: len(rows), Kind: s.Kind, First: times[0], Last: times[len(times)-1]}
		if err := w.record(ctx, source, s, &wr); err != nil {
			return out, err
		}
		out = append(out, wr)
	}
	w.mirror(s)
	return out, nil
}

// WriteDocument writes doc's payload as indented JSON.
func (w *Writer) WriteDocument(ctx context.Context, source string, doc model.Document) (Written, error) {
	path := w.Layout.DocumentPath(doc)
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc.Payload, "", "  "); err != nil {
		return Written{}, fmt.Errorf("document %s: %w", path, err)
	}
	buf.WriteByte('\n')
	if err := canon.WriteFile(path, buf.Bytes()); err != nil {
		return Written{}, err
	}
	wr := Written{Path: path, Rows: 1, Bytes: int64(buf.Len()), First: doc.AsOf, Last: doc.AsOf}
	if w.Ledger != nil {
		sum := sha256.Sum256(buf.Bytes())
		err := w.Ledger.Record(ctx, manifest.Entry{
			Path: w.rel(path), Source: source, Symbol: doc.Symbol.Ticker, AssetClass: string(doc.Symbol.Class),
			Resolution: "document", Kind: doc.Category, Rows: 1, SHA256: hex.EncodeToString(sum[:]),
			First: doc.AsOf, Last: doc.AsOf, RunID: w.RunID,
		})
		if err != nil {
			return wr, err
		}
	}
	return wr, nil
}

func (w *Writer) record(ctx context.Context, source string, s model.Series, wr *Written) error {
	data, err := os.ReadFile(wr.Path)
	if err != nil {
		return fmt.Errorf("stat written %s: %w", wr.Path, err)
	}
	wr.Bytes = int64(len(data))
	if w.Ledger == nil {
		return nil
	}
	sum := sha256.Sum256(data)
	return w.Ledger.Record(ctx, manifest.Entry{
		Path:       w.rel(wr.Path),
		Source:     source,
		Symbol:     s.Symbol.Ticker,
		AssetClass: string(s.Symbol.Class),
		Resolution: string(s.Resolution),
		Kind:       string(s.Kind),
		Rows:       wr.Rows,
		SHA256:     hex.EncodeToString(sum[:]),
		First:      wr.First,
		Last:       wr.Last,
		RunID:      w.RunID,
	})
}

func (w *Writer) rel(path string) string {
	if r, err := filepath.Rel(w.Layout.Root, path); err == nil {
		return filepath.ToSlash(r)
	}
	return path
}

// mirror exports the whole series through the optional PacketSaver. Failures are
// logged; the archive is the source of truth.
func (w *Writer) mirror(s model.Series) {
	if w.Mirror == nil {
		return
	}
	bars := saver.BarsFromSeries(s)
	if len(bars) == 0 {
		return
	}
	path := w.Layout.MirrorPath(s.Symbol, s.Resolution, w.Mirror.Extension())
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		slog.Warn("mirror: cannot create folder", "path", path, "error", err)
		return
	}
	if err := w.Mirror.Save(bars, path); err != nil {
		slog.Warn("mirror: save failed", "path", path, "error", err)
		return
	}
	slog.Debug("mirror saved", "path", path, "bars", len(bars))
}

type dayPart struct {
	day    time.Time
	series model.Series
}

// splitByDay cuts a time-sorted series into runs sharing a calendar date.
func splitByDay(s model.Series) []dayPart {
	loc := s.Symbol.Location()
	times := s.Times()
	var parts []dayPart
	start := 0
	for i := 1; i <= len(times); i++ {
		if i < len(times) && sameDay(times[i], times[start], loc) {
			continue
		}
		parts = append(parts, dayPart{day: canon.Midnight(times[start], loc), series: slice(s, start, i)})
		start = i
	}
	return parts
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func slice(s model.Series, i, j int) model.Series {
	out := s
	switch s.Kind {
	case model.KindQuote:
		out.Quotes = s.Quotes[i:j]
	case model.KindOption:
		out.Options = s.Options[i:j]
	default:
		out.Trades = s.Trades[i:j]
	}
	return out
}
