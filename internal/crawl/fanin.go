package crawl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// tally is the running count of one download loop, shared with the heartbeat.
type tally struct {
	mu      sync.Mutex
	total   int
	success int
	failed  int
	bars    int
	bytes   int64
}

func (t *tally) add(r JobResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r.Ok {
		t.success++
		t.bars += r.Bars
		t.bytes += r.Bytes
		return
	}
	t.failed++
}

func (t *tally) snapshot() (success, failed, bars int, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.success, t.failed, t.bars, t.bytes
}

func runHeartbeat(ctx context.Context, interval time.Duration, t *tally, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, f, bars, size := t.snapshot()
			logger.Info("heartbeat", "done", s+f, "total", t.total, "success", s, "failed", f,
				"bars", humanize.Comma(int64(bars)), "size", humanize.Bytes(uint64(size)))
		}
	}
}
