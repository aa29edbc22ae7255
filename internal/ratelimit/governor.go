// Package ratelimit spaces outbound vendor calls and retries transient failures.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Governor enforces a minimum interval of 60/rpm seconds between request starts.
// One Governor belongs to one adapter; the zero rpm means unlimited.
type Governor struct {
	name     string
	interval time.Duration
	limiter  *rate.Limiter

	mu       sync.Mutex
	lastCall time.Time
	calls    int
}

// NewGovernor builds a governor for rpm requests per minute.
func NewGovernor(name string, rpm int) *Governor {
	g := &Governor{name: name}
	if rpm > 0 {
		g.interval = time.Minute / time.Duration(rpm)
		g.limiter = rate.NewLimiter(rate.Every(g.interval), 1)
	} else {
		g.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return g
}

// Interval is the enforced minimum spacing.
func (g *Governor) Interval() time.Duration { return g.interval }

// Name is the owning adapter tag.
func (g *Governor) Name() string { return g.name }

// Wait blocks until the next call may start or ctx is done.
func (g *Governor) Wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	g.mu.Lock()
	g.lastCall = time.Now()
	g.calls++
	g.mu.Unlock()
	return nil
}

// LastCall returns the start time of the most recent admitted call.
func (g *Governor) LastCall() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastCall
}

// Calls returns how many calls have been admitted.
func (g *Governor) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
