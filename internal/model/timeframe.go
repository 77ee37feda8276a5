package model

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is the fixed duration each candle represents.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
	Timeframe1w  Timeframe = "1w"
)

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe30m: 30 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe1d:  24 * time.Hour,
	Timeframe1w:  7 * 24 * time.Hour,
}

// Timeframes lists every supported timeframe, shortest first.
func Timeframes() []Timeframe {
	return []Timeframe{
		Timeframe1m, Timeframe5m, Timeframe15m, Timeframe30m,
		Timeframe1h, Timeframe4h, Timeframe1d, Timeframe1w,
	}
}

// ParseTimeframe accepts the canonical names plus a few common aliases ("60m", "1wk", "D").
func ParseTimeframe(s string) (Timeframe, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "60m", "60min":
		v = "1h"
	case "240m":
		v = "4h"
	case "d", "24h":
		v = "1d"
	case "w", "1wk":
		v = "1w"
	}
	v = strings.TrimSuffix(v, "in") // 15min -> 15m
	tf := Timeframe(v)
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("%w: unknown timeframe %q", ErrInvalidRequest, s)
	}
	return tf, nil
}

// Duration returns the candle length.
func (tf Timeframe) Duration() time.Duration { return timeframeDurations[tf] }

// Valid reports whether tf is one of the supported timeframes.
func (tf Timeframe) Valid() bool {
	_, ok := timeframeDurations[tf]
	return ok
}

// mondayEpoch is the first Monday after the Unix epoch; weekly candles open on Mondays.
var mondayEpoch = time.Date(1970, 1, 5, 0, 0, 0, 0, time.UTC)

// Align returns the open time of the candle containing t, in UTC.
func (tf Timeframe) Align(t time.Time) time.Time {
	t = t.UTC()
	if tf == Timeframe1w {
		weeks := t.Sub(mondayEpoch) / tf.Duration()
		if t.Before(mondayEpoch) {
			weeks--
		}
		return mondayEpoch.Add(weeks * tf.Duration())
	}
	return t.Truncate(tf.Duration())
}
