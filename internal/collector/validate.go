package collector

import (
	"fmt"
	"math"
	"sort"

	"ForexFeed/internal/model"
)

// plausibleFactor bounds how far a price may sit from the pair's reference
// price before a response is treated as garbage.
const plausibleFactor = 20.0

// normalize sorts candles ascending, keeps the most recent req.Count, and
// rejects anything that would break the series invariants.
func normalize(candles []model.Candle, req Request) ([]model.Candle, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("empty response")
	}
	sorted := make([]model.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	if len(sorted) > req.Count {
		sorted = sorted[len(sorted)-req.Count:]
	}
	if len(sorted) < req.Count {
		return nil, fmt.Errorf("short history: got %d candles, want %d", len(sorted), req.Count)
	}

	var lo, hi float64
	if req.Pair.Known() {
		ref := req.Pair.Info().SeedPrice
		lo, hi = ref/plausibleFactor, ref*plausibleFactor
	}
	for i, c := range sorted {
		if c.Time.IsZero() {
			return nil, fmt.Errorf("candle %d: missing timestamp", i)
		}
		if i > 0 && !c.Time.After(sorted[i-1].Time) {
			return nil, fmt.Errorf("candle %d: timestamp %s not after %s", i, c.Time, sorted[i-1].Time)
		}
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("candle %d: non-finite value", i)
			}
		}
		if !c.Consistent() {
			return nil, fmt.Errorf("candle %d at %s: inconsistent OHLC o=%g h=%g l=%g c=%g",
				i, c.Time, c.Open, c.High, c.Low, c.Close)
		}
		if hi > 0 && (c.Close < lo || c.Close > hi) {
			return nil, fmt.Errorf("candle %d: close %g outside plausible range [%g, %g]", i, c.Close, lo, hi)
		}
	}
	return sorted, nil
}
