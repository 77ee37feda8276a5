// Package calculator derives summary statistics from a candle series.
package calculator

import (
	"errors"

	"ForexFeed/internal/model"
)

// SMA computes the simple moving average of the last period closes.
func SMA(candles []model.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(candles) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for _, c := range candles[len(candles)-period:] {
		sum += c.Close
	}
	return sum / float64(period), nil
}

// RSI computes the Wilder-smoothed RSI over the given period.
// Requires at least period+1 candles; returns 50 when data is insufficient.
func RSI(candles []model.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(candles) < period+1 {
		return 50.0, nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}

// Position returns where current sits within [low, high], clamped to 0..1.
func Position(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}

// Summary is the digest shown alongside a served series.
type Summary struct {
	Last     float64
	High     float64
	Low      float64
	ChangePc float64
	Position float64
	SMA20    float64 // zero when the series is shorter than 20
	RSI14    float64
}

// Summarize computes a Summary. It returns false for an empty series.
func Summarize(s *model.CandleSeries) (Summary, bool) {
	last, ok := s.Last()
	if !ok {
		return Summary{}, false
	}
	out := Summary{Last: last.Close}
	out.High, out.Low = s.Range()
	if first := s.Candles[0]; first.Open > 0 {
		out.ChangePc = (last.Close - first.Open) / first.Open * 100
	}
	out.Position, _ = Position(last.Close, out.High, out.Low)
	if sma, err := SMA(s.Candles, 20); err == nil {
		out.SMA20 = sma
	}
	out.RSI14, _ = RSI(s.Candles, 14)
	return out, true
}
