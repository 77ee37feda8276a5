package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"ForexFeed/internal/config"
	"ForexFeed/internal/model"
	"ForexFeed/internal/notifier"
	"ForexFeed/internal/recorder"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Provider is the part of the collector the scheduler drives.
type Provider interface {
	Fetch(ctx context.Context, pair, timeframe string, count int, demoMode bool) (*model.CandleSeries, error)
	Status() []model.SourceStatus
}

// Scheduler warms the watchlist on a cron schedule, raises degraded and
// recovered alerts, and answers chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Provider  Provider
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Watchlist []config.Watch
	Ctx       context.Context

	log *zap.Logger
	now func() time.Time

	mu       sync.Mutex
	degraded map[string]bool
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, p Provider, n notifier.Notifier, rec recorder.Recorder, watchlist []config.Watch, log *zap.Logger) *Scheduler {
	if n == nil {
		n = notifier.Noop{}
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Provider:  p,
		Notifier:  n,
		Recorder:  rec,
		Watchlist: watchlist,
		Ctx:       ctx,
		log:       log,
		now:       time.Now,
		degraded:  make(map[string]bool),
	}
}

// RegisterAll registers the watchlist warm-up and the daily attempt summary.
func (s *Scheduler) RegisterAll(warmupCron, summaryCron string) error {
	if len(s.Watchlist) > 0 {
		if _, err := s.Cron.AddFunc(warmupCron, s.Warmup); err != nil {
			return fmt.Errorf("register warmup task: %w", err)
		}
	}
	if summaryCron != "" {
		if _, err := s.Cron.AddFunc(summaryCron, s.dailySummary); err != nil {
			return fmt.Errorf("register summary task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", zap.Int("watchlist", len(s.Watchlist)))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func watchKey(w config.Watch) string {
	return string(w.Pair) + ":" + string(w.Timeframe)
}

// Warmup fetches every watched series once. Live results land in the
// provider cache; transitions to and from synthetic data are announced.
// Cached answers leave the watch state untouched.
func (s *Scheduler) Warmup() {
	for _, w := range s.Watchlist {
		if s.Ctx.Err() != nil {
			return
		}
		series, err := s.Provider.Fetch(s.Ctx, string(w.Pair), string(w.Timeframe), w.Count, false)
		if err != nil && !errors.Is(err, model.ErrNoDataAvailable) {
			s.log.Error("warmup fetch failed", zap.String("watch", watchKey(w)), zap.Error(err))
			continue
		}
		if err == nil && series.Cached {
			// a cache hit says nothing about the sources right now
			s.log.Debug("warmup served from cache", zap.String("watch", watchKey(w)))
			continue
		}
		live := err == nil && !series.Synthetic
		s.log.Debug("warmup fetched", zap.String("watch", watchKey(w)), zap.Bool("live", live))
		s.transition(w, live, series)
	}
}

func (s *Scheduler) transition(w config.Watch, live bool, series *model.CandleSeries) {
	key := watchKey(w)
	s.mu.Lock()
	was := s.degraded[key]
	s.degraded[key] = !live
	s.mu.Unlock()

	switch {
	case !live && !was:
		s.log.Warn("watch degraded", zap.String("watch", key))
		s.trySend(notifier.FormatDegraded(w.Pair, w.Timeframe, s.Provider.Status()))
	case live && was:
		s.log.Info("watch recovered", zap.String("watch", key), zap.String("source", series.Source))
		s.trySend(notifier.FormatRecovered(w.Pair, w.Timeframe, series.Source))
	}
}

// Degraded reports whether the last warm-up of pair/timeframe fell back to synthetic data.
func (s *Scheduler) Degraded(pair model.Pair, tf model.Timeframe) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded[string(pair)+":"+string(tf)]
}

func (s *Scheduler) dailySummary() {
	s.trySend(s.summary(s.Ctx))
}

func (s *Scheduler) summary(ctx context.Context) string {
	since := s.now().Add(-24 * time.Hour)
	rows, err := s.Recorder.Summary(ctx, since)
	if err != nil {
		s.log.Error("load attempt summary", zap.Error(err))
		return fmt.Sprintf("❌ summary unavailable: %v", err)
	}
	return notifier.FormatSummary(rows, since)
}

const helpText = "Commands:\n" +
	"• /status  source quotas and health\n" +
	"• /fetch PAIR TF [COUNT]  live series\n" +
	"• /demo PAIR TF [COUNT]  synthetic series\n" +
	"• /summary  attempts in the last 24h"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// "/fetch@MyBot" in group chats
	name, _, _ := strings.Cut(fields[0], "@")

	switch strings.ToLower(name) {
	case "/status":
		return notifier.FormatSourceStatus(s.Provider.Status(), s.now())
	case "/fetch", "/demo":
		if len(fields) < 3 || len(fields) > 4 {
			return "Usage: " + name + " PAIR TF [COUNT]"
		}
		count := 100
		if len(fields) == 4 {
			n, err := strconv.Atoi(fields[3])
			if err != nil {
				return fmt.Sprintf("❌ bad count %q", fields[3])
			}
			count = n
		}
		series, err := s.Provider.Fetch(ctx, fields[1], fields[2], count, name == "/demo")
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatSeries(series)
	case "/summary":
		return s.summary(ctx)
	default:
		return helpText
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.Send(s.Ctx, text); err != nil {
		s.log.Error("send notification", zap.Error(err))
	}
}
