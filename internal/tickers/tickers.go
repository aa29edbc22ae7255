// Package tickers loads symbol universes from files.
package tickers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadTickersFromFile reads a list of tickers from a file.
// Supported formats:
//   - .txt  : one ticker per line, '#' lines are treated as comments
//   - .json : JSON array of strings
//   - .yaml : YAML sequence of strings
func LoadTickersFromFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	var tickers []string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(content, &tickers); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &tickers); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	case ".txt", "":
		tickers = parseTickersFromText(string(content))
	default:
		return nil, fmt.Errorf("unsupported ticker file extension %q (use .txt, .json or .yaml)", ext)
	}

	tickers = Unique(tickers)
	slog.Info("loaded tickers from file", "count", len(tickers), "path", path)
	return tickers, nil
}

// Unique trims, upper-cases and de-duplicates tickers, keeping first-seen order.
func Unique(tickers []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tickers {
		t = strings.TrimSpace(strings.ToUpper(t))
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// ParseList splits a comma separated flag value.
func ParseList(s string) []string {
	return Unique(strings.Split(s, ","))
}

// parseTickersFromText parses a plain text representation of tickers
// where each non-empty, non-comment line represents a ticker.
func parseTickersFromText(s string) []string {
	lines := strings.Split(s, "\n")
	var tickers []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			tickers = append(tickers, line)
		}
	}
	return tickers
}

// Universe overrides default symbol lists: vendor tag -> asset class -> tickers.
type Universe map[string]map[string][]string

// LoadUniverse reads a universe file (.yaml, .yml or .json):
//
//	yahoo:
//	  equity: [AAPL, MSFT]
//	  forex: [EURUSD=X]
func LoadUniverse(path string) (Universe, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe %s: %w", path, err)
	}
	var u Universe
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(content, &u)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &u)
	default:
		return nil, fmt.Errorf("unsupported universe file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse universe %s: %w", path, err)
	}
	out := make(Universe, len(u))
	for vendor, classes := range u {
		v := strings.ToLower(strings.TrimSpace(vendor))
		out[v] = make(map[string][]string, len(classes))
		for class, list := range classes {
			out[v][strings.ToLower(strings.TrimSpace(class))] = Unique(list)
		}
	}
	return out, nil
}

// Lookup returns the override for (vendor, class) and whether one exists.
func (u Universe) Lookup(vendor, class string) ([]string, bool) {
	if u == nil {
		return nil, false
	}
	list, ok := u[vendor][class]
	return list, ok
}
