// Package quota tracks per-source request budgets inside fixed time windows.
package quota

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"ForexFeed/internal/model"

	"github.com/robfig/cron/v3"
)

type window struct {
	limit   model.QuotaLimit
	sched   cron.Schedule
	used    int
	pending int
	resetAt time.Time
}

// roll starts a new window once the reset boundary has passed. In-flight
// reservations carry over and are counted in the window they complete in.
func (w *window) roll(now time.Time) {
	if w.resetAt.IsZero() || !now.Before(w.resetAt) {
		w.used = 0
		w.resetAt = w.sched.Next(now)
	}
}

func (w *window) available() bool {
	return w.used+w.pending < w.limit.Ceiling
}

// Counter owns the quota state of every registered source. It is safe for concurrent use.
type Counter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string][]*window
}

// Option customizes a Counter.
type Option func(*Counter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) { c.now = now }
}

// NewCounter creates an empty counter.
func NewCounter(opts ...Option) *Counter {
	c := &Counter{
		now:     time.Now,
		windows: make(map[string][]*window),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseWindow parses a window expression. Expressions without an explicit
// time zone are evaluated in UTC.
func ParseWindow(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty quota window")
	}
	if !strings.HasPrefix(expr, "TZ=") && !strings.HasPrefix(expr, "CRON_TZ=") {
		expr = "CRON_TZ=UTC " + expr
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse quota window %q: %w", expr, err)
	}
	return sched, nil
}

// Register installs the limits for a source, replacing any previous ones.
// Limits with a non-positive ceiling are ignored.
func (c *Counter) Register(source string, limits []model.QuotaLimit) error {
	ws := make([]*window, 0, len(limits))
	for _, l := range limits {
		if l.Ceiling <= 0 {
			continue
		}
		sched, err := ParseWindow(l.Window)
		if err != nil {
			return fmt.Errorf("source %s: %w", source, err)
		}
		ws = append(ws, &window{limit: l, sched: sched})
	}
	c.mu.Lock()
	c.windows[source] = ws
	c.mu.Unlock()
	return nil
}

// Reservation holds one pending request slot in every window of a source.
// Exactly one of Commit or Release must be called; later calls are no-ops.
type Reservation struct {
	c       *Counter
	windows []*window
	done    bool
}

// Reserve claims a slot if every limit of the source has room. Sources without
// registered limits always succeed.
func (c *Counter) Reserve(source string) (*Reservation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	ws := c.windows[source]
	for _, w := range ws {
		w.roll(now)
		if !w.available() {
			return nil, false
		}
	}
	for _, w := range ws {
		w.pending++
	}
	return &Reservation{c: c, windows: ws}, true
}

// Commit converts the reservation into a counted request.
func (r *Reservation) Commit() {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	now := r.c.now()
	for _, w := range r.windows {
		w.roll(now)
		w.pending--
		w.used++
	}
}

// Release gives the slot back without counting it.
func (r *Reservation) Release() {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	for _, w := range r.windows {
		w.pending--
	}
}

// Exhausted reports whether any limit of the source is at its ceiling right now.
func (c *Counter) Exhausted(source string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for _, w := range c.windows[source] {
		w.roll(now)
		if !w.available() {
			return true
		}
	}
	return false
}

// Usage snapshots every limit of a source.
func (c *Counter) Usage(source string) []model.QuotaUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	ws := c.windows[source]
	out := make([]model.QuotaUsage, 0, len(ws))
	for _, w := range ws {
		w.roll(now)
		out = append(out, model.QuotaUsage{
			Ceiling:   w.limit.Ceiling,
			Window:    w.limit.Window,
			Used:      w.used,
			Pending:   w.pending,
			ResetsAt:  w.resetAt,
			Exhausted: !w.available(),
		})
	}
	return out
}
