package model

import "time"

// Candle is a single OHLC record. Values are copied, never shared.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Consistent reports whether the candle satisfies the OHLC envelope:
// every price positive, low <= min(open, close), high >= max(open, close).
func (c Candle) Consistent() bool {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 || c.Volume < 0 {
		return false
	}
	return c.Low <= min(c.Open, c.Close) && c.High >= max(c.Open, c.Close)
}

// CandleSeries is an ordered run of candles that came from exactly one source.
type CandleSeries struct {
	Pair      Pair      `json:"pair"`
	Timeframe Timeframe `json:"timeframe"`
	Source    string    `json:"source"`
	Synthetic bool      `json:"synthetic"`
	Cached    bool      `json:"cached"`
	FetchID   string    `json:"fetch_id"`
	WalkID    string    `json:"walk_id,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
	Candles   []Candle  `json:"candles"`
}

// Len returns the number of candles in the series.
func (s *CandleSeries) Len() int { return len(s.Candles) }

// Last returns the most recent candle.
func (s *CandleSeries) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Range returns the highest high and lowest low across the series.
func (s *CandleSeries) Range() (high, low float64) {
	for i, c := range s.Candles {
		if i == 0 || c.High > high {
			high = c.High
		}
		if i == 0 || c.Low < low {
			low = c.Low
		}
	}
	return high, low
}

// Clone returns a deep copy so cached series are never mutated by callers.
func (s *CandleSeries) Clone() *CandleSeries {
	out := *s
	out.Candles = make([]Candle, len(s.Candles))
	copy(out.Candles, s.Candles)
	return &out
}
