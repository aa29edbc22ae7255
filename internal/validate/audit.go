package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"lean-data/internal/canon"
	"lean-data/internal/model"
)

// Violation is one broken invariant found by an archive audit. Row is zero-based.
type Violation struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Report summarizes a materialized archive.
type Report struct {
	Path        string      `json:"path"`
	Entry       string      `json:"entry"`
	Kind        model.Kind  `json:"kind"`
	Bars        int         `json:"bars"`
	First       string      `json:"first,omitempty"`
	Last        string      `json:"last,omitempty"`
	PriceMin    float64     `json:"price_min"`
	PriceMax    float64     `json:"price_max"`
	VolumeTotal float64     `json:"volume_total"`
	VolumeMean  float64     `json:"volume_mean"`
	VolumeMax   float64     `json:"volume_max"`
	Violations  []Violation `json:"violations,omitempty"`
	Valid       bool        `json:"is_valid"`
}

// AuditArchive reads the archive at path and checks every row. The record kind is
// taken from the inner file name; trade archives with 7 columns are treated as options.
func AuditArchive(path string) (Report, error) {
	entry, data, err := canon.ReadArchive(path)
	if err != nil {
		return Report{}, err
	}
	rows, err := canon.DecodeCSV(data)
	if err != nil {
		return Report{}, fmt.Errorf("audit %s: %w", path, err)
	}
	kind := kindFromEntry(entry)
	if kind == model.KindTrade && len(rows) > 0 && len(rows[0]) == 7 {
		kind = model.KindOption
	}
	r := AuditRows(rows, kind)
	r.Path = path
	r.Entry = entry
	return r, nil
}

func kindFromEntry(name string) model.Kind {
	base := strings.TrimSuffix(strings.ToLower(name), ".csv")
	switch {
	case strings.HasSuffix(base, "_quote"):
		return model.KindQuote
	case strings.HasSuffix(base, "_economic"):
		return model.KindEconomic
	}
	return model.KindTrade
}

func expectedColumns(k model.Kind) int {
	switch k {
	case model.KindQuote:
		return 9
	case model.KindOption:
		return 7
	}
	return 6
}

// AuditRows checks decoded archive rows of the given kind.
func AuditRows(rows [][]string, kind model.Kind) Report {
	r := Report{Kind: kind, Bars: len(rows), PriceMin: math.Inf(1), PriceMax: math.Inf(-1)}
	want := expectedColumns(kind)
	var (
		prevKey   int64
		havePrev  bool
		volumes   int
		timeStyle = -1 // 0 ms, 1 wall clock
	)
	add := func(row int, format string, args ...any) {
		r.Violations = append(r.Violations, Violation{Row: row, Reason: fmt.Sprintf(format, args...)})
	}

	for i, row := range rows {
		if len(row) != want {
			add(i, "expected %d columns, got %d", want, len(row))
			continue
		}
		key, style, err := timeKey(row[0])
		if err != nil {
			add(i, "bad time %q", row[0])
			continue
		}
		if timeStyle >= 0 && style != timeStyle {
			add(i, "mixed time formats")
		}
		timeStyle = style
		if havePrev && key <= prevKey {
			add(i, "time not increasing: %s", row[0])
		}
		prevKey, havePrev = key, true
		if r.First == "" {
			r.First = row[0]
		}
		r.Last = row[0]

		nums := make([]float64, len(row)-1)
		bad := false
		for j, s := range row[1:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				add(i, "bad number %q in column %d", s, j+1)
				bad = true
				break
			}
			nums[j] = v
		}
		if bad {
			continue
		}

		switch kind {
		case model.KindQuote:
			auditQuoteRow(i, nums, &r, add)
		default:
			prices := nums[:4]
			for _, p := range prices {
				r.PriceMin = math.Min(r.PriceMin, p)
				r.PriceMax = math.Max(r.PriceMax, p)
			}
			if err := checkOHLC(prices[0], prices[1], prices[2], prices[3]); err != nil {
				add(i, "%v", err)
			}
			vol := nums[4]
			if vol < 0 {
				add(i, "%v", ErrNegVolume)
			}
			r.VolumeTotal += vol
			r.VolumeMax = math.Max(r.VolumeMax, vol)
			volumes++
			if kind == model.KindOption && nums[5] < 0 {
				add(i, "negative open interest")
			}
		}
	}
	if volumes > 0 {
		r.VolumeMean = r.VolumeTotal / float64(volumes)
	}
	if math.IsInf(r.PriceMin, 1) {
		r.PriceMin, r.PriceMax = 0, 0
	}
	r.Valid = len(r.Violations) == 0
	return r
}

func auditQuoteRow(i int, p []float64, r *Report, add func(int, string, ...any)) {
	for _, v := range p {
		r.PriceMin = math.Min(r.PriceMin, v)
		r.PriceMax = math.Max(r.PriceMax, v)
		if v <= 0 {
			add(i, "%v", ErrNonPositive)
			return
		}
	}
	if p[7] < p[3] || p[4] < p[0] {
		add(i, "%v", ErrCrossed)
	}
	if err := checkOHLC(p[0], p[1], p[2], p[3]); err != nil {
		add(i, "bid: %v", err)
	}
	if err := checkOHLC(p[4], p[5], p[6], p[7]); err != nil {
		add(i, "ask: %v", err)
	}
}

// timeKey turns a time column into a comparable integer and reports its style.
func timeKey(s string) (int64, int, error) {
	if strings.Contains(s, " ") {
		t, err := time.Parse("20060102 15:04", s)
		if err != nil {
			return 0, 0, err
		}
		return t.Unix() * 1000, 1, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	if ms < 0 || ms >= 86_400_000 {
		return 0, 0, fmt.Errorf("ms since midnight out of range: %d", ms)
	}
	return ms, 0, nil
}
