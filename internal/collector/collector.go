package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"ForexFeed/internal/metrics"
	"ForexFeed/internal/model"
	"ForexFeed/internal/quota"
	"ForexFeed/internal/recorder"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Attempt outcomes, used as metric labels and in the attempt log.
const (
	OutcomeOK                = "ok"
	OutcomeFailed            = "failed"
	OutcomeSkippedCredential = "skipped_credential"
	OutcomeSkippedTimeframe  = "skipped_timeframe"
	OutcomeSkippedQuota      = "skipped_quota"
)

// Options bounds what the collector accepts and how it falls back.
type Options struct {
	MaxCount         int
	RequestTimeout   time.Duration
	SynthesisEnabled bool
	CacheTTL         time.Duration
	// Pairs restricts accepted pairs. Empty means the built-in catalogue.
	Pairs []model.Pair
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		MaxCount:         1000,
		RequestTimeout:   10 * time.Second,
		SynthesisEnabled: true,
		CacheTTL:         5 * time.Minute,
	}
}

type sourceHealth struct {
	lastErr string
	lastOK  time.Time
}

// Collector serves candle series from the first source that can answer,
// falling back to synthetic data. It is safe for concurrent use.
type Collector struct {
	fetchers []Fetcher
	quota    *quota.Counter
	opts     Options
	allowed  map[model.Pair]bool

	log     *zap.Logger
	metrics *metrics.Metrics
	rec     recorder.Recorder
	now     func() time.Time

	synth *Synthesizer
	cache *seriesCache
	group singleflight.Group

	mu     sync.Mutex
	health map[string]*sourceHealth
}

// Option customizes a Collector.
type Option func(*Collector)

func WithLogger(log *zap.Logger) Option {
	return func(c *Collector) { c.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Collector) { c.metrics = m }
}

func WithRecorder(r recorder.Recorder) Option {
	return func(c *Collector) { c.rec = r }
}

// WithClock replaces time.Now for candle alignment and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// NewCollector orders fetchers by priority. A nil counter means no source is rate limited.
func NewCollector(fetchers []Fetcher, counter *quota.Counter, opts Options, options ...Option) *Collector {
	ordered := make([]Fetcher, len(fetchers))
	copy(ordered, fetchers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Descriptor().Priority < ordered[j].Descriptor().Priority
	})
	if counter == nil {
		counter = quota.NewCounter()
	}
	def := DefaultOptions()
	if opts.MaxCount <= 0 {
		opts.MaxCount = def.MaxCount
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}

	c := &Collector{
		fetchers: ordered,
		quota:    counter,
		opts:     opts,
		log:      zap.NewNop(),
		metrics:  metrics.NewNoop(),
		rec:      recorder.NewNoopRecorder(),
		now:      time.Now,
		health:   make(map[string]*sourceHealth),
	}
	for _, o := range options {
		o(c)
	}
	if len(opts.Pairs) > 0 {
		c.allowed = make(map[model.Pair]bool, len(opts.Pairs))
		for _, p := range opts.Pairs {
			c.allowed[p] = true
		}
	}
	c.synth = NewSynthesizer(c.now)
	c.cache = newSeriesCache(opts.CacheTTL, c.now)
	return c
}

// Pairs lists the accepted pairs.
func (c *Collector) Pairs() []model.Pair {
	if len(c.opts.Pairs) == 0 {
		return model.CataloguePairs()
	}
	out := make([]model.Pair, len(c.opts.Pairs))
	copy(out, c.opts.Pairs)
	return out
}

// MaxCount is the largest accepted candle count.
func (c *Collector) MaxCount() int { return c.opts.MaxCount }

func (c *Collector) validate(pair, timeframe string, count int) (Request, error) {
	p, err := model.ParsePair(pair)
	if err != nil {
		return Request{}, err
	}
	if c.allowed != nil && !c.allowed[p] || c.allowed == nil && !p.Known() {
		return Request{}, fmt.Errorf("%w: unsupported pair %s", model.ErrInvalidRequest, p)
	}
	tf, err := model.ParseTimeframe(timeframe)
	if err != nil {
		return Request{}, err
	}
	if count < 1 || count > c.opts.MaxCount {
		return Request{}, fmt.Errorf("%w: count %d outside [1, %d]", model.ErrInvalidRequest, count, c.opts.MaxCount)
	}
	return Request{Pair: p, Timeframe: tf, Count: count}, nil
}

// Fetch returns exactly count candles for pair and timeframe, or an error
// wrapping model.ErrInvalidRequest or model.ErrNoDataAvailable. With demoMode
// set no source is contacted. A cancelled ctx stops this caller waiting and its
// error is returned as is; a walk shared with other callers runs on.
func (c *Collector) Fetch(ctx context.Context, pair, timeframe string, count int, demoMode bool) (*model.CandleSeries, error) {
	start := time.Now()
	req, err := c.validate(pair, timeframe, count)
	if err != nil {
		c.metrics.InvalidRequests.Inc()
		c.log.Debug("invalid fetch request", zap.String("pair", pair), zap.String("timeframe", timeframe),
			zap.Int("count", count), zap.Error(err))
		return nil, err
	}

	fetchID := uuid.NewString()
	var (
		series *model.CandleSeries
		walkID string
	)
	switch {
	case demoMode:
		series = c.synthesize(req)
	default:
		if cached, ok := c.cache.get(req); ok {
			c.metrics.CacheHits.Inc()
			series, walkID = cached, cached.WalkID
			break
		}
		series, walkID, err = c.fetchLive(ctx, req)
		if errors.Is(err, model.ErrNoDataAvailable) && c.opts.SynthesisEnabled {
			c.log.Warn("all sources failed, serving synthetic series",
				zap.String("pair", string(req.Pair)), zap.String("timeframe", string(req.Timeframe)), zap.Error(err))
			series, err = c.synthesize(req), nil
			series.WalkID = walkID
		}
	}

	elapsed := time.Since(start)
	c.metrics.FetchSeconds.Observe(elapsed.Seconds())
	evt := &recorder.FetchEvent{
		FetchID:   fetchID,
		WalkID:    walkID,
		Pair:      string(req.Pair),
		Timeframe: string(req.Timeframe),
		Count:     req.Count,
		Demo:      demoMode,
		Duration:  elapsed,
	}
	if err != nil {
		if errors.Is(err, model.ErrNoDataAvailable) {
			c.metrics.NoData.Inc()
		}
		evt.Err = err.Error()
		c.record(evt)
		return nil, err
	}

	series.FetchID = fetchID
	evt.Source = series.Source
	evt.Synthetic = series.Synthetic
	evt.Cached = series.Cached
	evt.Candles = series.Len()
	c.record(evt)
	c.metrics.SeriesServed.With(series.Source, strconv.FormatBool(series.Synthetic)).Inc()
	return series, nil
}

func (c *Collector) synthesize(req Request) *model.CandleSeries {
	return &model.CandleSeries{
		Pair:      req.Pair,
		Timeframe: req.Timeframe,
		Source:    DemoSource,
		Synthetic: true,
		FetchedAt: c.now().UTC(),
		Candles:   c.synth.Generate(req),
	}
}

type walkResult struct {
	id     string
	series *model.CandleSeries
}

// fetchLive coalesces identical concurrent requests into one walk of the
// source chain. The walk is detached from the caller that started it, so a
// caller that gives up only stops waiting; the others still get the result.
// Each attempt keeps its own timeout. The walk id is returned even on failure.
func (c *Collector) fetchLive(ctx context.Context, req Request) (*model.CandleSeries, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(req), func() (any, error) {
		w := &walkResult{id: uuid.NewString()}
		s, err := c.walk(detached, req, w.id)
		if err != nil {
			return w, err
		}
		c.cache.set(req, s)
		w.series = s
		return w, nil
	})

	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case res := <-ch:
		w := res.Val.(*walkResult)
		if res.Err != nil {
			return nil, w.id, res.Err
		}
		return w.series.Clone(), w.id, nil
	}
}

// walk tries each source once in priority order. Attempts are recorded under walkID.
func (c *Collector) walk(ctx context.Context, req Request, walkID string) (*model.CandleSeries, error) {
	var failures []error
	for _, f := range c.fetchers {
		name := f.Name()
		switch {
		case !f.Configured():
			c.attempted(walkID, name, req, OutcomeSkippedCredential, 0, nil)
			continue
		case !f.Supports(req.Timeframe):
			c.attempted(walkID, name, req, OutcomeSkippedTimeframe, 0, nil)
			continue
		}

		res, ok := c.quota.Reserve(name)
		if !ok {
			c.metrics.QuotaRejections.With(name).Inc()
			c.attempted(walkID, name, req, OutcomeSkippedQuota, 0, nil)
			continue
		}

		start := time.Now()
		candles, err := c.attempt(ctx, f, req)
		if err != nil {
			res.Release()
			err = fmt.Errorf("%w: %s: %w", model.ErrSourceUnavailable, name, err)
			failures = append(failures, err)
			c.attempted(walkID, name, req, OutcomeFailed, time.Since(start), err)
			c.log.Warn("source failed",
				zap.String("source", name),
				zap.String("pair", string(req.Pair)),
				zap.String("timeframe", string(req.Timeframe)),
				zap.Error(err))
			continue
		}
		res.Commit()
		c.attempted(walkID, name, req, OutcomeOK, time.Since(start), nil)

		return &model.CandleSeries{
			Pair:      req.Pair,
			Timeframe: req.Timeframe,
			Source:    name,
			WalkID:    walkID,
			FetchedAt: c.now().UTC(),
			Candles:   candles,
		}, nil
	}
	if len(failures) == 0 {
		return nil, fmt.Errorf("%w: no eligible source for %s %s", model.ErrNoDataAvailable, req.Pair, req.Timeframe)
	}
	return nil, fmt.Errorf("%w: %w", model.ErrNoDataAvailable, errors.Join(failures...))
}

func (c *Collector) attempt(ctx context.Context, f Fetcher, req Request) ([]model.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	raw, err := f.Request(ctx, req)
	if err != nil {
		return nil, err
	}
	candles, err := f.Parse(raw, req)
	if err != nil {
		return nil, err
	}
	return normalize(candles, req)
}

func (c *Collector) attempted(walkID, source string, req Request, outcome string, d time.Duration, err error) {
	c.metrics.SourceAttempts.With(source, outcome).Inc()

	evt := &recorder.AttemptEvent{
		WalkID:    walkID,
		Source:    source,
		Pair:      string(req.Pair),
		Timeframe: string(req.Timeframe),
		Outcome:   outcome,
		Duration:  d,
	}
	if err != nil {
		evt.Err = err.Error()
	}
	if rerr := c.rec.RecordAttempt(evt); rerr != nil {
		c.log.Warn("record attempt failed", zap.Error(rerr))
	}

	if outcome != OutcomeOK && outcome != OutcomeFailed {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.health[source]
	if h == nil {
		h = &sourceHealth{}
		c.health[source] = h
	}
	if err != nil {
		h.lastErr = err.Error()
	} else {
		h.lastOK = c.now().UTC()
		h.lastErr = ""
	}
}

func (c *Collector) record(evt *recorder.FetchEvent) {
	if err := c.rec.RecordFetch(evt); err != nil {
		c.log.Warn("record fetch failed", zap.Error(err))
	}
}

// Status reports every source in trial order with its live quota state.
func (c *Collector) Status() []model.SourceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.SourceStatus, 0, len(c.fetchers))
	for _, f := range c.fetchers {
		st := model.SourceStatus{
			Descriptor: f.Descriptor(),
			Configured: f.Configured(),
			Quota:      c.quota.Usage(f.Name()),
		}
		if h := c.health[f.Name()]; h != nil {
			st.LastError = h.lastErr
			st.LastOK = h.lastOK
		}
		out = append(out, st)
	}
	return out
}
