package calculator

import (
	"testing"
	"time"

	"ForexFeed/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closes(vals ...float64) []model.Candle {
	out := make([]model.Candle, len(vals))
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range vals {
		out[i] = model.Candle{Time: t0.Add(time.Duration(i) * time.Hour), Open: v, High: v, Low: v, Close: v}
	}
	return out
}

func TestSMA(t *testing.T) {
	v, err := SMA(closes(1, 2, 3, 4, 5), 3)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, v, 1e-12)

	_, err = SMA(closes(1, 2), 3)
	assert.Error(t, err)
	_, err = SMA(closes(1, 2), 0)
	assert.Error(t, err)
}

func TestRSI(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = 1 + float64(i)*0.01
	}
	v, err := RSI(closes(rising...), 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	v, err = RSI(closes(1, 2, 3), 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, v, "insufficient data defaults to neutral")

	alternating := make([]float64, 30)
	for i := range alternating {
		alternating[i] = 1.0 + float64(i%2)*0.01
	}
	v, err = RSI(closes(alternating...), 14)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, v, 5)
}

func TestPosition(t *testing.T) {
	p, err := Position(1.5, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)

	p, _ = Position(3, 2, 1)
	assert.Equal(t, 1.0, p)
	p, _ = Position(1, 1, 1)
	assert.Equal(t, 0.5, p)
	_, err = Position(1, 1, 2)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	_, ok := Summarize(&model.CandleSeries{})
	assert.False(t, ok)

	s := &model.CandleSeries{Candles: closes(1.0, 1.1, 1.2, 1.1)}
	sum, ok := Summarize(s)
	require.True(t, ok)
	assert.Equal(t, 1.1, sum.Last)
	assert.Equal(t, 1.2, sum.High)
	assert.Equal(t, 1.0, sum.Low)
	assert.InDelta(t, 10.0, sum.ChangePc, 1e-9)
	assert.InDelta(t, 0.5, sum.Position, 1e-9)
	assert.Zero(t, sum.SMA20)
	assert.Equal(t, 50.0, sum.RSI14)
}
