package crawl

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type failedEntry struct {
	Source    string `json:"source"`
	Ticker    string `json:"ticker"`
	DateRange string `json:"date_range"`
	Reason    string `json:"reason"`
}

type successReport struct {
	RunID      string    `json:"run_id"`
	FinishedAt time.Time `json:"finished_at"`
	Symbols    []string  `json:"symbols"`
}

type failedReport struct {
	RunID      string        `json:"run_id"`
	FinishedAt time.Time     `json:"finished_at"`
	Failed     []failedEntry `json:"failed"`
}

func writeRunReport(dir, runID string, successList []string, failedList []failedEntry) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	now := time.Now().UTC().Truncate(time.Second)
	if len(successList) > 0 {
		p := filepath.Join(dir, ".lastrun.success.json")
		data, err := json.MarshalIndent(successReport{RunID: runID, FinishedAt: now, Symbols: successList}, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(p, data, 0644); err != nil {
			return err
		}
		slog.Info("report wrote success", "path", p, "symbols", len(successList))
	}
	if len(failedList) > 0 {
		p := filepath.Join(dir, ".lastrun.failed.json")
		data, err := json.MarshalIndent(failedReport{RunID: runID, FinishedAt: now, Failed: failedList}, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(p, data, 0644); err != nil {
			return err
		}
		slog.Info("report wrote failed", "path", p, "count", len(failedList))
	}
	return nil
}

func appendSuccess(list []string, key string) []string {
	for _, t := range list {
		if t == key {
			return list
		}
	}
	return append(list, key)
}

func joinFailedReasons(failedList []failedEntry) string {
	if len(failedList) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range failedList {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Source)
		b.WriteString("/")
		b.WriteString(f.Ticker)
		b.WriteString(": ")
		b.WriteString(f.Reason)
		if i >= 4 && len(failedList) > 6 {
			b.WriteString(fmt.Sprintf(" (+%d more)", len(failedList)-5))
			break
		}
	}
	return b.String()
}
