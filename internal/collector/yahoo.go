package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"ForexFeed/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance public chart API. No key is required.
type YahooFetcher struct {
	base
	BaseURL   string
	SymbolMap map[model.Pair]string // maps pairs Yahoo does not list as "XXXYYY=X"
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(desc model.SourceDescriptor, timeout time.Duration, proxyURL string) *YahooFetcher {
	return &YahooFetcher{
		base: base{
			desc:   desc,
			client: newHTTPClient(timeout, proxyURL),
		},
		BaseURL: yahooBaseURL,
		SymbolMap: map[model.Pair]string{
			"XAUUSD": "GC=F",
			"BTCUSD": "BTC-USD",
		},
	}
}

func (f *YahooFetcher) Configured() bool { return true }

func (f *YahooFetcher) Supports(tf model.Timeframe) bool { return tf.Valid() }

func (f *YahooFetcher) yahooSymbol(p model.Pair) string {
	if mapped, ok := f.SymbolMap[p]; ok {
		return mapped
	}
	return string(p) + "=X"
}

// yahooInterval maps a timeframe to the Yahoo interval; 4h is built from 1h candles.
func yahooInterval(tf model.Timeframe) string {
	switch tf {
	case model.Timeframe1h, model.Timeframe4h:
		return "60m"
	case model.Timeframe1w:
		return "1wk"
	default:
		return string(tf)
	}
}

var yahooRanges = []struct {
	name string
	span time.Duration
}{
	{"1d", 24 * time.Hour},
	{"5d", 5 * 24 * time.Hour},
	{"1mo", 30 * 24 * time.Hour},
	{"3mo", 90 * 24 * time.Hour},
	{"6mo", 180 * 24 * time.Hour},
	{"1y", 365 * 24 * time.Hour},
	{"2y", 730 * 24 * time.Hour},
	{"5y", 5 * 365 * 24 * time.Hour},
	{"10y", 10 * 365 * 24 * time.Hour},
	{"max", 0},
}

// yahooRange picks the smallest range covering count candles. Weekends are
// closed for FX so the span is padded. Intraday intervals are capped at what
// Yahoo serves for them.
func yahooRange(tf model.Timeframe, count int) string {
	span := time.Duration(count) * tf.Duration() * 3 / 2
	limit := "max"
	switch tf {
	case model.Timeframe1m:
		limit = "5d"
	case model.Timeframe5m, model.Timeframe15m, model.Timeframe30m:
		limit = "1mo"
	case model.Timeframe1h, model.Timeframe4h:
		limit = "2y"
	}
	for _, r := range yahooRanges {
		if r.name == limit || r.span >= span {
			return r.name
		}
	}
	return "max"
}

func (f *YahooFetcher) Request(ctx context.Context, req Request) ([]byte, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(req.Pair)), yahooInterval(req.Timeframe), yahooRange(req.Timeframe, req.Count))
	return f.get(ctx, u, nil)
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func (f *YahooFetcher) Parse(raw []byte, req Request) ([]model.Candle, error) {
	var chart yahooChart
	if err := json.Unmarshal(raw, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no quote block")
	}
	quote := result.Indicators.Quote[0]
	bars := make([]model.Candle, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // null bars (holidays, halted sessions)
		}
		bars = append(bars, model.Candle{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}

	if req.Timeframe == model.Timeframe4h {
		bars = resample(bars, model.Timeframe4h)
	}
	return bars, nil
}
