package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli"

	"lean-data/internal/app"
	"lean-data/internal/crawl"
	"lean-data/internal/model"
	"lean-data/internal/tickers"
)

func symbolsFlag(tag string) string { return tag + "-symbols" }

func downloadFlags() []cli.Flag {
	flags := []cli.Flag{
		cli.StringSliceFlag{Name: "source, s", Usage: "source tag, comma list or \"all\" (repeatable)"},
		cli.StringFlag{Name: "start-date", Usage: "first date, YYYY-MM-DD (default: one year before end)"},
		cli.StringFlag{Name: "end-date", Usage: "last date, YYYY-MM-DD (default: yesterday UTC)"},
		cli.StringFlag{Name: "resolution, r", Value: string(model.Daily), Usage: "tick|second|minute|hour|daily|weekly|monthly"},
		cli.BoolFlag{Name: "test", Usage: "two symbols per list and the last seven days only"},
		cli.BoolFlag{Name: "download-fundamentals", Usage: "also fetch fundamentals and financial statements"},
		cli.BoolFlag{Name: "download-news", Usage: "also fetch news"},
		cli.BoolFlag{Name: "download-earnings", Usage: "also fetch earnings history"},
		cli.BoolFlag{Name: "download-options", Usage: "also fetch option chain snapshots"},
		cli.StringFlag{Name: "output-dir, o", Usage: "archive root (default: $DATA_DIR or ./data)"},
		cli.StringFlag{Name: "log-level", Usage: "debug|info|warn|error (default: $LOG_LEVEL or info)"},
		cli.StringFlag{Name: "log-format", Usage: "text|json (default: $LOG_FORMAT or text)"},
		cli.BoolFlag{Name: "resume", Usage: "start each symbol after the last date in .lastday.json"},
	}
	for _, tag := range app.VendorTags() {
		flags = append(flags, cli.StringFlag{
			Name:  symbolsFlag(tag),
			Usage: fmt.Sprintf("comma-separated %s symbols, or @file (.txt/.json/.yaml)", tag),
		})
	}
	return flags
}

func parseDateFlag(c *cli.Context, name string) (time.Time, error) {
	s := strings.TrimSpace(c.String(name))
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: want YYYY-MM-DD, got %q", name, s)
	}
	return t, nil
}

// parseSymbols reads "A,B" or "@path".
func parseSymbols(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if path, ok := strings.CutPrefix(s, "@"); ok {
		return tickers.LoadTickersFromFile(path)
	}
	return tickers.ParseList(s), nil
}

// optionsFromFlags turns the command line into run options. Defaults are
// relative to now.
func optionsFromFlags(c *cli.Context, now time.Time) (app.Options, error) {
	defStart, defEnd := app.DefaultDates(now)
	start, err := parseDateFlag(c, "start-date")
	if err != nil {
		return app.Options{}, err
	}
	end, err := parseDateFlag(c, "end-date")
	if err != nil {
		return app.Options{}, err
	}
	if end.IsZero() {
		end = defEnd
	}
	if start.IsZero() {
		start = defStart
		if start.After(end) {
			start = end.AddDate(-1, 0, 0)
		}
	}
	res, err := model.ParseResolution(c.String("resolution"))
	if err != nil {
		return app.Options{}, err
	}

	sources := c.StringSlice("source")
	if len(sources) == 0 {
		sources = []string{"all"}
	}
	symbols := make(map[string][]string)
	for _, tag := range app.VendorTags() {
		v := c.String(symbolsFlag(tag))
		if v == "" {
			continue
		}
		list, err := parseSymbols(v)
		if err != nil {
			return app.Options{}, fmt.Errorf("--%s: %w", symbolsFlag(tag), err)
		}
		symbols[tag] = list
	}

	opts := app.Options{
		Sources:    sources,
		Start:      start,
		End:        end,
		Resolution: res,
		Symbols:    symbols,
		Test:       c.Bool("test"),
		Documents: crawl.DocumentSet{
			Fundamentals: c.Bool("download-fundamentals"),
			News:         c.Bool("download-news"),
			Earnings:     c.Bool("download-earnings"),
			Options:      c.Bool("download-options"),
		},
		OutputDir: c.String("output-dir"),
		LogLevel:  c.String("log-level"),
		LogFormat: c.String("log-format"),
		Resume:    c.Bool("resume"),
	}
	if err := opts.Validate(); err != nil {
		return app.Options{}, err
	}
	return opts, nil
}
