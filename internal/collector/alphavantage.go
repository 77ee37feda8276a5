package collector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ForexFeed/internal/model"

	"github.com/tidwall/gjson"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantageFetcher reads FX_INTRADAY, FX_DAILY and FX_WEEKLY. A free key is required.
type AlphaVantageFetcher struct {
	base
	BaseURL string
}

func NewAlphaVantageFetcher(desc model.SourceDescriptor, apiKey string, timeout time.Duration, proxyURL string) *AlphaVantageFetcher {
	desc.RequiresCredential = true
	return &AlphaVantageFetcher{
		base: base{
			desc:   desc,
			apiKey: apiKey,
			client: newHTTPClient(timeout, proxyURL),
		},
		BaseURL: alphaVantageBaseURL,
	}
}

func (f *AlphaVantageFetcher) Configured() bool { return f.apiKey != "" }

func (f *AlphaVantageFetcher) Supports(tf model.Timeframe) bool { return tf.Valid() }

// avInterval returns the function and intraday interval for tf.
func avInterval(tf model.Timeframe) (function, interval string) {
	switch tf {
	case model.Timeframe1d:
		return "FX_DAILY", ""
	case model.Timeframe1w:
		return "FX_WEEKLY", ""
	case model.Timeframe1h, model.Timeframe4h:
		return "FX_INTRADAY", "60min"
	default:
		return "FX_INTRADAY", strings.TrimSuffix(string(tf), "m") + "min"
	}
}

func (f *AlphaVantageFetcher) Request(ctx context.Context, req Request) ([]byte, error) {
	function, interval := avInterval(req.Timeframe)
	q := url.Values{}
	q.Set("function", function)
	q.Set("from_symbol", req.Pair.Base())
	q.Set("to_symbol", req.Pair.Quote())
	q.Set("apikey", f.apiKey)
	if interval != "" {
		q.Set("interval", interval)
	}
	need := req.Count
	if req.Timeframe == model.Timeframe4h {
		need *= 4
	}
	if need > 100 {
		q.Set("outputsize", "full")
	} else {
		q.Set("outputsize", "compact")
	}
	return f.get(ctx, f.BaseURL+"/query?"+q.Encode(), nil)
}

func (f *AlphaVantageFetcher) Parse(raw []byte, req Request) ([]model.Candle, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("alphavantage: invalid json")
	}
	doc := gjson.ParseBytes(raw)
	for _, key := range []string{"Error Message", "Note", "Information"} {
		if msg := doc.Get(key); msg.Exists() {
			return nil, fmt.Errorf("alphavantage: %s", msg.String())
		}
	}

	// The series key varies by function: "Time Series FX (15min)", "Time Series FX (Daily)", ...
	var series gjson.Result
	doc.ForEach(func(key, value gjson.Result) bool {
		if strings.HasPrefix(key.String(), "Time Series") {
			series = value
			return false
		}
		return true
	})
	if !series.IsObject() {
		return nil, fmt.Errorf("alphavantage: time series block missing")
	}

	var bars []model.Candle
	var parseErr error
	series.ForEach(func(key, value gjson.Result) bool {
		ts, err := parseAVTime(key.String())
		if err != nil {
			parseErr = err
			return false
		}
		fields := value.Map()
		c := model.Candle{Time: ts}
		for name, dst := range map[string]*float64{
			"1. open": &c.Open, "2. high": &c.High, "3. low": &c.Low, "4. close": &c.Close,
		} {
			v, ok := fields[name]
			if !ok {
				parseErr = fmt.Errorf("alphavantage: %s missing field %q", key.String(), name)
				return false
			}
			n, err := strconv.ParseFloat(v.String(), 64)
			if err != nil {
				parseErr = fmt.Errorf("alphavantage: %s field %q: %w", key.String(), name, err)
				return false
			}
			*dst = n
		}
		bars = append(bars, c)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	if req.Timeframe == model.Timeframe4h {
		bars = resample(bars, model.Timeframe4h)
	}
	return bars, nil
}

// Alpha Vantage reports FX timestamps in UTC.
func parseAVTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("alphavantage: bad timestamp %q", s)
}
