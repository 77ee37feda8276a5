package recorder

import (
	"context"
	"time"
)

// FetchEvent describes one completed Fetch call. WalkID names the source
// walk that produced it; callers coalesced onto one walk share it.
type FetchEvent struct {
	FetchID   string
	WalkID    string
	Pair      string
	Timeframe string
	Count     int
	Source    string
	Synthetic bool
	Cached    bool
	Demo      bool
	Candles   int
	Duration  time.Duration
	Err       string
}

// AttemptEvent describes one source trial inside a walk.
type AttemptEvent struct {
	WalkID    string
	Source    string
	Pair      string
	Timeframe string
	Outcome   string // "ok", "failed", "skipped_credential", "skipped_quota", "skipped_timeframe"
	Duration  time.Duration
	Err       string
}

// SourceSummary aggregates attempts of one source since a point in time.
type SourceSummary struct {
	Source   string
	OK       int
	Failed   int
	Skipped  int
	LastErr  string
	LastSeen time.Time
}

// Recorder persists fetch history for later analysis.
type Recorder interface {
	RecordFetch(evt *FetchEvent) error
	RecordAttempt(evt *AttemptEvent) error
	Summary(ctx context.Context, since time.Time) ([]SourceSummary, error)
	Close() error
}
