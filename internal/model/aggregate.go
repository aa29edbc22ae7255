package model

import (
	"sort"
	"time"
)

// QuoteTick is a single top-of-book update.
type QuoteTick struct {
	Time    time.Time
	Bid     float64
	Ask     float64
	BidSize float64
	AskSize float64
}

// AggregateQuotes folds ticks into QuoteBars of resolution r, bucketed on the wall clock
// of loc. Ticks with a non-positive side are skipped. Tick resolution keeps one bar per tick.
func AggregateQuotes(ticks []QuoteTick, r Resolution, loc *time.Location) []QuoteBar {
	if len(ticks) == 0 {
		return nil
	}
	sorted := make([]QuoteTick, len(ticks))
	copy(sorted, ticks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	var bars []QuoteBar
	var cur *QuoteBar
	for _, t := range sorted {
		if t.Bid <= 0 || t.Ask <= 0 {
			continue
		}
		start := t.Time
		if r != Tick {
			start = BucketStart(t.Time, r, loc)
		}
		if cur == nil || !cur.Time.Equal(start) || r == Tick {
			bars = append(bars, QuoteBar{
				Time:    start,
				BidOpen: t.Bid, BidHigh: t.Bid, BidLow: t.Bid, BidClose: t.Bid,
				AskOpen: t.Ask, AskHigh: t.Ask, AskLow: t.Ask, AskClose: t.Ask,
				LastBidSize: t.BidSize, LastAskSize: t.AskSize,
			})
			cur = &bars[len(bars)-1]
			continue
		}
		cur.BidHigh = max(cur.BidHigh, t.Bid)
		cur.BidLow = min(cur.BidLow, t.Bid)
		cur.BidClose = t.Bid
		cur.AskHigh = max(cur.AskHigh, t.Ask)
		cur.AskLow = min(cur.AskLow, t.Ask)
		cur.AskClose = t.Ask
		cur.LastBidSize = t.BidSize
		cur.LastAskSize = t.AskSize
	}
	return bars
}
