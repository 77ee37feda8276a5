package collector

import (
	"sort"

	"ForexFeed/internal/model"
)

// resample folds finer candles into tf buckets aligned by tf.Align. The last
// bucket may be partial when its period is still open.
func resample(bars []model.Candle, tf model.Timeframe) []model.Candle {
	if len(bars) == 0 {
		return nil
	}
	sorted := make([]model.Candle, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	var out []model.Candle
	var cur model.Candle
	started := false

	for _, b := range sorted {
		bucket := tf.Align(b.Time)
		if !started || !bucket.Equal(cur.Time) {
			if started {
				out = append(out, cur)
			}
			cur = model.Candle{Time: bucket, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			started = true
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	if started {
		out = append(out, cur)
	}
	return out
}
