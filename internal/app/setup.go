package app

import (
	"log/slog"
	"os"
	"time"

	"lean-data/internal/slogx"
)

const heartbeatInterval = 30 * time.Second

// SetupLogging installs the process logger from cfg.
func SetupLogging(cfg *Config) {
	slog.SetDefault(slogx.New(os.Stderr, cfg.LogLevel, cfg.LogFormat))
}

// PrepareDataDir creates the output root.
func PrepareDataDir(cfg *Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return err
	}
	slog.Info("save dir", "dir", cfg.DataDir, "mirror", cfg.MirrorFormat, "manifest", cfg.ManifestFile())
	return nil
}
