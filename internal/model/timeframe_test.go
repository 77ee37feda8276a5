package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	cases := map[string]Timeframe{
		"15m":   Timeframe15m,
		"15min": Timeframe15m,
		"1min":  Timeframe1m,
		"60min": Timeframe1h,
		"1H":    Timeframe1h,
		"4h":    Timeframe4h,
		"D":     Timeframe1d,
		"1wk":   Timeframe1w,
	}
	for in, want := range cases {
		got, err := ParseTimeframe(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseTimeframe_Unknown(t *testing.T) {
	_, err := ParseTimeframe("7m")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestTimeframeAlign(t *testing.T) {
	ts := time.Date(2024, 3, 13, 10, 47, 31, 0, time.UTC) // Wednesday
	assert.Equal(t, time.Date(2024, 3, 13, 10, 45, 0, 0, time.UTC), Timeframe15m.Align(ts))
	assert.Equal(t, time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC), Timeframe4h.Align(ts))
	assert.Equal(t, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), Timeframe1d.Align(ts))
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), Timeframe1w.Align(ts))
}

func TestCandleConsistent(t *testing.T) {
	ok := Candle{Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15}
	assert.True(t, ok.Consistent())

	highBelowClose := Candle{Open: 1.1, High: 1.12, Low: 1.0, Close: 1.15}
	assert.False(t, highBelowClose.Consistent())

	negative := Candle{Open: -1, High: 1, Low: -2, Close: 0.5}
	assert.False(t, negative.Consistent())
}

func TestSeriesRangeAndClone(t *testing.T) {
	s := &CandleSeries{Candles: []Candle{
		{Open: 1, High: 1.5, Low: 0.9, Close: 1.2},
		{Open: 1.2, High: 1.8, Low: 1.1, Close: 1.7},
	}}
	h, l := s.Range()
	assert.Equal(t, 1.8, h)
	assert.Equal(t, 0.9, l)

	c := s.Clone()
	c.Candles[0].Close = 99
	assert.Equal(t, 1.2, s.Candles[0].Close)
}
