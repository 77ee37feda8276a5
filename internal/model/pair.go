package model

import (
	"fmt"
	"sort"
	"strings"
)

// Pair is a normalized currency pair identifier: base and quote ISO codes joined, e.g. "EURUSD".
type Pair string

// ParsePair normalizes "EUR/USD", "eur-usd" or "EURUSD" into "EURUSD".
func ParsePair(s string) (Pair, error) {
	r := strings.NewReplacer("/", "", "-", "", "_", "", " ", "")
	v := strings.ToUpper(r.Replace(strings.TrimSpace(s)))
	if len(v) != 6 {
		return "", fmt.Errorf("%w: malformed pair %q", ErrInvalidRequest, s)
	}
	for _, ch := range v {
		if ch < 'A' || ch > 'Z' {
			return "", fmt.Errorf("%w: malformed pair %q", ErrInvalidRequest, s)
		}
	}
	return Pair(v), nil
}

// Base returns the base currency code.
func (p Pair) Base() string { return string(p[:3]) }

// Quote returns the quote currency code.
func (p Pair) Quote() string { return string(p[3:]) }

// Slash returns the "EUR/USD" form.
func (p Pair) Slash() string { return p.Base() + "/" + p.Quote() }

// PairInfo describes a pair's typical behaviour, used to seed and sanity-check data.
type PairInfo struct {
	SeedPrice float64
	// Volatility is the relative one-sigma move of a 15 minute candle.
	Volatility float64
	// Decimals is the quoting precision (5 for most majors, 3 for JPY quotes).
	Decimals int32
}

const (
	volMajor  = 0.0006
	volJPY    = 0.0007
	volExotic = 0.0012
)

var catalogue = map[Pair]PairInfo{
	// majors
	"EURUSD": {1.0850, volMajor, 5},
	"GBPUSD": {1.2650, volMajor, 5},
	"USDJPY": {149.50, volJPY, 3},
	"AUDUSD": {0.6550, volMajor, 5},
	"USDCAD": {1.3650, volMajor, 5},
	"USDCHF": {0.8750, volMajor, 5},
	"NZDUSD": {0.6150, volMajor, 5},
	// minors
	"EURGBP": {0.8580, volMajor, 5},
	"EURJPY": {162.30, volJPY, 3},
	"GBPJPY": {189.20, volJPY, 3},
	"EURAUD": {1.6500, volMajor, 5},
	"GBPAUD": {1.9200, volMajor, 5},
	"AUDJPY": {98.00, volJPY, 3},
	"CADJPY": {110.00, volJPY, 3},
	"CHFJPY": {170.00, volJPY, 3},
	"EURCAD": {1.4700, volMajor, 5},
	"EURCHF": {0.9500, volMajor, 5},
	"GBPCAD": {1.7200, volMajor, 5},
	"GBPCHF": {1.1100, volMajor, 5},
	// exotics
	"USDTRY": {32.00, volExotic, 4},
	"USDZAR": {18.50, volExotic, 4},
	"USDMXN": {17.10, volExotic, 4},
	"USDBRL": {5.000, volExotic, 4},
	"EURTRY": {34.70, volExotic, 4},
	"GBPZAR": {23.40, volExotic, 4},
	"AUDMXN": {11.20, volExotic, 4},
	"CADMXN": {12.50, volExotic, 4},
	// metals and crypto
	"XAUUSD": {2050.00, 0.0015, 2},
	"BTCUSD": {42000.00, 0.004, 2},
}

var defaultInfo = PairInfo{SeedPrice: 1.0, Volatility: volMajor, Decimals: 5}

// Info returns the catalogue entry for p, or a neutral default for unlisted pairs.
func (p Pair) Info() PairInfo {
	if info, ok := catalogue[p]; ok {
		return info
	}
	return defaultInfo
}

// Known reports whether p is in the built-in catalogue.
func (p Pair) Known() bool {
	_, ok := catalogue[p]
	return ok
}

// CataloguePairs returns every pair in the built-in catalogue, sorted.
func CataloguePairs() []Pair {
	out := make([]Pair, 0, len(catalogue))
	for p := range catalogue {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
