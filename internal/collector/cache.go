package collector

import (
	"fmt"
	"sync"
	"time"

	"ForexFeed/internal/model"
)

type cacheEntry struct {
	series  *model.CandleSeries
	expires time.Time
}

// seriesCache keeps the latest successful live series per pair and timeframe
// for a short TTL. Any request for at most that many candles is served from its
// tail. A zero TTL disables it.
type seriesCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

func newSeriesCache(ttl time.Duration, now func() time.Time) *seriesCache {
	return &seriesCache{ttl: ttl, now: now, entries: make(map[string]cacheEntry)}
}

func cacheKey(req Request) string {
	return string(req.Pair) + "|" + string(req.Timeframe)
}

// flightKey separates requests that need a different number of candles.
func flightKey(req Request) string {
	return fmt.Sprintf("%s|%d", cacheKey(req), req.Count)
}

func (c *seriesCache) get(req Request) (*model.CandleSeries, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey(req)]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, cacheKey(req))
		return nil, false
	}
	n := len(e.series.Candles)
	if n < req.Count {
		return nil, false
	}
	out := *e.series
	out.Candles = make([]model.Candle, req.Count)
	copy(out.Candles, e.series.Candles[n-req.Count:])
	out.Cached = true
	return &out, true
}

func (c *seriesCache) set(req Request, s *model.CandleSeries) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	key := cacheKey(req)
	if old, ok := c.entries[key]; ok && longerAndAsRecent(old.series, s) {
		return
	}
	c.entries[key] = cacheEntry{series: s.Clone(), expires: now.Add(c.ttl)}
}

// longerAndAsRecent reports whether cur still covers everything next does.
func longerAndAsRecent(cur, next *model.CandleSeries) bool {
	a, okA := cur.Last()
	b, okB := next.Last()
	return okA && okB && len(cur.Candles) > len(next.Candles) && !a.Time.Before(b.Time)
}
