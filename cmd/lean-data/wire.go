//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"lean-data/internal/app"
)

// App holds application dependencies built by Wire.
type App struct {
	Config *app.Config
	Runner *app.Runner
}

// InitializeApp builds App for one run. The cleanup flushes the run report and
// closes the manifest.
func InitializeApp(opts app.Options) (*App, func(), error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideRunID,
		app.ProvidePacketSaver,
		app.ProvideManifest,
		app.ProvideLayout,
		app.ProvideWriter,
		app.ProvideDownloader,
		app.ProvideUniverse,
		app.ProvideRunner,
		wire.Struct(new(App), "Config", "Runner"),
	)
	return nil, nil, nil
}
