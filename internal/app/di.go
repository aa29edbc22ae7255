package app

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"lean-data/internal/archive"
	"lean-data/internal/crawl"
	"lean-data/internal/manifest"
	"lean-data/internal/saver"
	"lean-data/internal/tickers"
)

// RunID identifies one invocation in the manifest and the run report.
type RunID string

// ProvideConfig loads config from environment and applies CLI overrides (for Wire).
func ProvideConfig(opts Options) *Config {
	cfg := LoadConfig()
	if opts.OutputDir != "" {
		cfg.DataDir = opts.OutputDir
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
	return cfg
}

// ProvideRunID creates a fresh run id (for Wire).
func ProvideRunID() RunID {
	return RunID(uuid.NewString())
}

// ProvidePacketSaver creates the optional mirror saver from config (for Wire).
// An empty MIRROR_FORMAT disables mirroring; an unknown one is an error.
func ProvidePacketSaver(cfg *Config) (saver.PacketSaver, error) {
	if cfg.MirrorFormat == "" {
		return nil, nil
	}
	ps := saver.NewPacketSaver(cfg.MirrorFormat)
	if ps == nil {
		return nil, fmt.Errorf("%w: unsupported MIRROR_FORMAT %q (use: csv, parquet, json)", ErrConfig, cfg.MirrorFormat)
	}
	return ps, nil
}

// ProvideManifest opens the SQLite ledger (for Wire). The cleanup closes it.
func ProvideManifest(cfg *Config) (*manifest.Store, func(), error) {
	store, err := manifest.Open(cfg.ManifestFile())
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Warn("manifest close", "error", err)
		}
	}, nil
}

// ProvideLayout builds the archive layout under DataDir (for Wire).
func ProvideLayout(cfg *Config) archive.Layout {
	return archive.NewLayout(cfg.DataDir, cfg.ClassRoots)
}

// ProvideWriter wires layout, mirror and ledger into the archive writer (for Wire).
func ProvideWriter(layout archive.Layout, ps saver.PacketSaver, store *manifest.Store, id RunID) *archive.Writer {
	w := archive.NewWriter(layout, ps, store)
	w.RunID = string(id)
	if ps != nil {
		slog.Info("wire", "mirror", ps.Extension(), "dir", layout.Root)
	}
	return w
}

// ProvideDownloader creates the Downloader (for Wire); the manifest backs resume
// for symbols the progress file lacks. The cleanup flushes progress and writes
// the run report.
func ProvideDownloader(cfg *Config, w *archive.Writer, store *manifest.Store, id RunID, opts Options) (*crawl.Downloader, func()) {
	d := crawl.NewDownloader(w, crawl.Options{
		ReportDir:    cfg.DataDir,
		ProgressPath: cfg.ProgressPath(),
		RunID:        string(id),
		Resume:       opts.Resume,
		History:      store,
		Heartbeat:    heartbeatInterval,
	})
	return d, func() {
		if err := d.Close(); err != nil {
			slog.Warn("could not write run report", "error", err)
		}
	}
}

// ProvideUniverse loads UNIVERSE_FILE when set (for Wire).
func ProvideUniverse(cfg *Config) (tickers.Universe, error) {
	if cfg.UniverseFile == "" {
		return nil, nil
	}
	u, err := tickers.LoadUniverse(cfg.UniverseFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	slog.Info("universe file loaded", "path", cfg.UniverseFile, "vendors", len(u))
	return u, nil
}

// ProvideRunner creates the Runner (for Wire).
func ProvideRunner(cfg *Config, d *crawl.Downloader, u tickers.Universe) *Runner {
	return NewRunner(cfg, d, u)
}
