// Package archive maps canonical series onto the on-disk layout and writes them.
package archive

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"lean-data/internal/canon"
	"lean-data/internal/model"
)

// DefaultClassRoots is the directory under the output root for each asset class.
var DefaultClassRoots = map[model.AssetClass]string{
	model.Equity:   "equity",
	model.Option:   "option",
	model.Future:   "future",
	model.Forex:    filepath.Join("equity", "forex"),
	model.Crypto:   "crypto",
	model.CFD:      "cfd",
	model.Index:    filepath.Join("equity", "index"),
	model.Bond:     filepath.Join("equity", "bond"),
	model.Economic: "economic",
}

// Layout resolves archive paths under Root.
type Layout struct {
	Root       string
	ClassRoots map[model.AssetClass]string
}

// NewLayout returns a layout with the default class roots, overridden by overrides.
func NewLayout(root string, overrides map[model.AssetClass]string) Layout {
	roots := make(map[model.AssetClass]string, len(DefaultClassRoots))
	for k, v := range DefaultClassRoots {
		roots[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			roots[k] = v
		}
	}
	return Layout{Root: root, ClassRoots: roots}
}

// ClassDir is <root>/<class root>.
func (l Layout) ClassDir(c model.AssetClass) string {
	r, ok := l.ClassRoots[c]
	if !ok {
		r = string(c)
	}
	return filepath.Join(l.Root, r)
}

func venueDir(sym model.Symbol) string {
	v := strings.ToLower(sym.Venue)
	if v == "" {
		v = "unknown"
	}
	return v
}

// PerDay reports whether records of sym at res are split into one file per date.
func PerDay(sym model.Symbol, res model.Resolution) bool {
	return sym.Class == model.Future || res.IsIntraday()
}

// SeriesPath returns the file a slice of records is written to. day is only used
// when PerDay is true.
func (l Layout) SeriesPath(sym model.Symbol, res model.Resolution, kind model.Kind, day time.Time) string {
	name := sym.FileName()
	base := filepath.Join(l.ClassDir(sym.Class), venueDir(sym), string(res))
	if sym.Class == model.Future {
		return filepath.Join(base, name, fmt.Sprintf("%s_%s_%s.csv", canon.FormatDate(day), name, res))
	}
	if res.IsIntraday() {
		return filepath.Join(base, name, fmt.Sprintf("%s_%s.zip", canon.FormatDate(day), kind.FileKind()))
	}
	return filepath.Join(base, name+".zip")
}

// DocumentPath returns <class root>/<venue>/<category>/<symbol>_<name>.json.
func (l Layout) DocumentPath(doc model.Document) string {
	name := doc.Name
	if name == "" {
		name = doc.Category
	}
	file := fmt.Sprintf("%s_%s.json", doc.Symbol.FileName(), strings.ToLower(name))
	return filepath.Join(l.ClassDir(doc.Symbol.Class), venueDir(doc.Symbol), strings.ToLower(doc.Category), file)
}

// MirrorPath returns the mirror export file for a series.
func (l Layout) MirrorPath(sym model.Symbol, res model.Resolution, ext string) string {
	r, ok := l.ClassRoots[sym.Class]
	if !ok {
		r = string(sym.Class)
	}
	return filepath.Join(l.Root, "mirror", r, venueDir(sym), string(res), sym.FileName()+"."+ext)
}
