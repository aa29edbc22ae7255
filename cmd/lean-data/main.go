package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"

	"lean-data/internal/app"
	"lean-data/internal/manifest"
	"lean-data/internal/slogx"
	"lean-data/internal/validate"
)

func init() {
	slog.SetDefault(slogx.NewDefault("info"))
}

func main() {
	if err := newApp(runDownload).Run(os.Args); err != nil {
		slog.Error("lean-data", "error", err)
		os.Exit(app.ExitFailure)
	}
}

// newApp builds the command tree; download runs the default action.
func newApp(download func(c *cli.Context, opts app.Options) error) *cli.App {
	a := cli.NewApp()
	a.Name = "lean-data"
	a.Usage = "download historical market data into a Lean-format archive"
	a.Flags = downloadFlags()
	a.Action = func(c *cli.Context) error {
		opts, err := optionsFromFlags(c, time.Now().UTC())
		if err != nil {
			return cli.NewExitError(err.Error(), app.ExitFailure)
		}
		return download(c, opts)
	}
	a.Commands = []cli.Command{
		{
			Name:      "audit",
			Usage:     "check archives and print one JSON report per file",
			ArgsUsage: "<archive.zip|file.csv>...",
			Action:    auditAction,
		},
		{
			Name:      "manifest",
			Usage:     "list archives recorded in the manifest, or look up the given paths",
			ArgsUsage: "[path relative to the data dir]...",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "source", Usage: "only list archives from this source"},
				cli.StringFlag{Name: "output-dir", Usage: "data directory (overrides DATA_DIR)"},
			},
			Action: manifestAction,
		},
		{
			Name:   "sources",
			Usage:  "list registered sources",
			Action: sourcesAction,
		},
	}
	return a
}

func runDownload(c *cli.Context, opts app.Options) error {
	a, cleanup, err := InitializeApp(opts)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return cli.NewExitError("", app.ExitFailure)
	}
	defer cleanup()

	app.SetupLogging(a.Config)
	if err := app.PrepareDataDir(a.Config); err != nil {
		slog.Error("failed to create data dir", "error", err)
		return cli.NewExitError("", app.ExitFailure)
	}
	slog.Info("run", "sources", strings.Join(opts.Sources, ","), "resolution", opts.Resolution,
		"start", opts.Start.Format(time.DateOnly), "end", opts.End.Format(time.DateOnly), "test", opts.Test, "resume", opts.Resume)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if code := a.Runner.Run(ctx, opts); code != app.ExitOK {
		return cli.NewExitError("", code)
	}
	return nil
}

func auditAction(c *cli.Context) error {
	paths := c.Args()
	if len(paths) == 0 {
		return cli.NewExitError("audit: at least one archive path is required", app.ExitFailure)
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	bad := 0
	for _, p := range paths {
		rep, err := validate.AuditArchive(p)
		if err != nil {
			slog.Error("audit failed", "path", p, "error", err)
			bad++
			continue
		}
		if !rep.Valid {
			bad++
		}
		if err := enc.Encode(rep); err != nil {
			return err
		}
	}
	if bad > 0 {
		return cli.NewExitError(fmt.Sprintf("%d of %d archives failed the audit", bad, len(paths)), app.ExitFailure)
	}
	return nil
}

func manifestAction(c *cli.Context) error {
	cfg := app.LoadConfig()
	if dir := c.String("output-dir"); dir != "" {
		cfg.DataDir = dir
	}
	store, err := manifest.Open(cfg.ManifestFile())
	if err != nil {
		return cli.NewExitError(err.Error(), app.ExitFailure)
	}
	defer store.Close()

	ctx := context.Background()
	var entries []manifest.Entry
	missing := 0
	if paths := c.Args(); len(paths) > 0 {
		for _, p := range paths {
			e, ok, err := store.Get(ctx, filepath.ToSlash(p))
			if err != nil {
				return cli.NewExitError(err.Error(), app.ExitFailure)
			}
			if !ok {
				slog.Warn("not in manifest", "path", p)
				missing++
				continue
			}
			entries = append(entries, e)
		}
	} else if entries, err = store.List(ctx, c.String("source")); err != nil {
		return cli.NewExitError(err.Error(), app.ExitFailure)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tSOURCE\tROWS\tFIRST\tLAST\tRUN")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", e.Path, e.Source, e.Rows,
			e.First.Format(time.DateTime), e.Last.Format(time.DateTime), e.RunID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if missing > 0 {
		return cli.NewExitError(fmt.Sprintf("%d path(s) not in manifest", missing), app.ExitFailure)
	}
	return nil
}

func sourcesAction(c *cli.Context) error {
	cfg := app.LoadConfig()
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tNAME\tRPM\tCLASSES\tCREDENTIALS")
	for _, v := range app.Registry {
		classes := make([]string, len(v.Classes))
		for i, cl := range v.Classes {
			classes[i] = string(cl)
		}
		creds := "ok"
		if missing := v.MissingCredentials(cfg); len(missing) > 0 {
			creds = "missing " + strings.Join(missing, ",")
		} else if len(v.Credentials) == 0 {
			creds = "none needed"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", v.Tag, v.Name, cfg.VendorRPM(v.Tag), strings.Join(classes, ","), creds)
	}
	return w.Flush()
}
