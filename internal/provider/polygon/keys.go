package polygon

import (
	"strings"
	"sync"
)

// KeyPool hands out API keys round-robin so several free-tier keys can share one
// crawl. Request counts are kept for the end-of-run log.
type KeyPool struct {
	mu     sync.Mutex
	keys   []string
	counts []int64
	next   int
}

// NewKeyPool splits a comma-separated key list. Blank entries are dropped.
func NewKeyPool(spec string) *KeyPool {
	p := &KeyPool{}
	for _, k := range strings.Split(spec, ",") {
		if k = strings.TrimSpace(k); k != "" {
			p.keys = append(p.keys, k)
		}
	}
	p.counts = make([]int64, len(p.keys))
	return p
}

// Len is the number of keys.
func (p *KeyPool) Len() int { return len(p.keys) }

// Next returns the next key, or "" for an empty pool.
func (p *KeyPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return ""
	}
	i := p.next
	p.next = (p.next + 1) % len(p.keys)
	p.counts[i]++
	return p.keys[i]
}

// Usage maps a redacted key prefix to its request count.
func (p *KeyPool) Usage() map[string]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int64, len(p.keys))
	for i, k := range p.keys {
		prefix := k
		if len(k) > 8 {
			prefix = k[:8]
		}
		out[prefix+"..."] = p.counts[i]
	}
	return out
}
