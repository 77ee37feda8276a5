package collector

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"ForexFeed/internal/model"

	"github.com/shopspring/decimal"
)

// DemoSource is the source name stamped on synthetic series.
const DemoSource = "demo"

const (
	maxSigma      = 0.05
	meanReversion = 0.02
	shockClamp    = 4.0
)

// Synthesizer generates deterministic demo candles. Identical (pair, timeframe,
// count) requests inside the same candle period produce identical series.
type Synthesizer struct {
	now func() time.Time
}

func NewSynthesizer(now func() time.Time) *Synthesizer {
	if now == nil {
		now = time.Now
	}
	return &Synthesizer{now: now}
}

func seedFor(req Request, end time.Time) uint64 {
	h := fnv.New64a()
	h.Write([]byte(req.Pair))
	h.Write([]byte{'|'})
	h.Write([]byte(req.Timeframe))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(end.Unix(), 10)))
	return h.Sum64()
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Generate returns req.Count candles spaced exactly one timeframe apart, the
// last one opening at the start of the current period.
func (s *Synthesizer) Generate(req Request) []model.Candle {
	d := req.Timeframe.Duration()
	end := req.Timeframe.Align(s.now())
	seed := seedFor(req, end)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	info := req.Pair.Info()
	sigma := info.Volatility * math.Sqrt(float64(d)/float64(15*time.Minute))
	if sigma > maxSigma {
		sigma = maxSigma
	}
	anchor := info.SeedPrice
	floor := math.Pow10(-int(info.Decimals))

	out := make([]model.Candle, req.Count)
	price := anchor
	prevClose := round(anchor, info.Decimals)

	for i := 0; i < req.Count; i++ {
		trend := math.Sin(float64(i)/50) * sigma * 0.5
		shock := math.Max(-shockClamp, math.Min(shockClamp, rng.NormFloat64())) * sigma
		revert := -meanReversion * math.Log(price/anchor)
		price *= math.Exp(trend + shock + revert)
		price = math.Max(anchor/3, math.Min(anchor*3, price))

		o := prevClose
		c := round(price, info.Decimals)
		spread := c * sigma * (0.5 + rng.Float64())
		h := round(math.Max(o, c)+rng.Float64()*spread/2, info.Decimals)
		l := round(math.Min(o, c)-rng.Float64()*spread/2, info.Decimals)
		if l < floor {
			l = floor
		}
		if l > math.Min(o, c) {
			l = math.Min(o, c)
		}
		if h < math.Max(o, c) {
			h = math.Max(o, c)
		}

		out[i] = model.Candle{
			Time:   end.Add(-time.Duration(req.Count-1-i) * d),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: float64(1000 + rng.IntN(14001)),
		}
		prevClose = c
	}
	return out
}
