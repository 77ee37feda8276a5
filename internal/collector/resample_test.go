package collector

import (
	"testing"
	"time"

	"ForexFeed/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResampleHourlyToFourHour(t *testing.T) {
	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	var hourly []model.Candle
	for i := 0; i < 8; i++ {
		p := 1.10 + float64(i)*0.001
		hourly = append(hourly, model.Candle{
			Time: start.Add(time.Duration(i) * time.Hour),
			Open: p, High: p + 0.002, Low: p - 0.001, Close: p + 0.0005, Volume: 10,
		})
	}
	// out of order input is tolerated
	hourly[0], hourly[5] = hourly[5], hourly[0]

	out := resample(hourly, model.Timeframe4h)
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, start, first.Time)
	assert.InDelta(t, 1.100, first.Open, 1e-9)
	assert.InDelta(t, 1.103+0.002, first.High, 1e-9)
	assert.InDelta(t, 1.100-0.001, first.Low, 1e-9)
	assert.InDelta(t, 1.1035, first.Close, 1e-9)
	assert.Equal(t, 40.0, first.Volume)
	assert.Equal(t, start.Add(4*time.Hour), out[1].Time)
}

func TestResampleEmpty(t *testing.T) {
	assert.Nil(t, resample(nil, model.Timeframe4h))
}
