package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"ForexFeed/internal/model"
)

const (
	twelveDataBaseURL = "https://api.twelvedata.com"
	twelveDataMaxSize = 5000
)

// TwelveDataFetcher implements Fetcher using the Twelve Data time_series endpoint. A key is required.
type TwelveDataFetcher struct {
	base
	BaseURL string
}

func NewTwelveDataFetcher(desc model.SourceDescriptor, apiKey string, timeout time.Duration, proxyURL string) *TwelveDataFetcher {
	desc.RequiresCredential = true
	return &TwelveDataFetcher{
		base: base{
			desc:   desc,
			apiKey: apiKey,
			client: newHTTPClient(timeout, proxyURL),
		},
		BaseURL: twelveDataBaseURL,
	}
}

func (f *TwelveDataFetcher) Configured() bool { return f.apiKey != "" }

func (f *TwelveDataFetcher) Supports(tf model.Timeframe) bool { return tf.Valid() }

var twelveDataIntervals = map[model.Timeframe]string{
	model.Timeframe1m:  "1min",
	model.Timeframe5m:  "5min",
	model.Timeframe15m: "15min",
	model.Timeframe30m: "30min",
	model.Timeframe1h:  "1h",
	model.Timeframe4h:  "4h",
	model.Timeframe1d:  "1day",
	model.Timeframe1w:  "1week",
}

func (f *TwelveDataFetcher) Request(ctx context.Context, req Request) ([]byte, error) {
	size := req.Count
	if size > twelveDataMaxSize {
		size = twelveDataMaxSize
	}
	q := url.Values{}
	q.Set("symbol", req.Pair.Slash())
	q.Set("interval", twelveDataIntervals[req.Timeframe])
	q.Set("outputsize", strconv.Itoa(size))
	q.Set("timezone", "UTC")
	q.Set("apikey", f.apiKey)
	return f.get(ctx, f.BaseURL+"/time_series?"+q.Encode(), nil)
}

// tdResponse is the expected JSON shape; prices arrive as strings.
type tdResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Values  []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

func (f *TwelveDataFetcher) Parse(raw []byte, _ Request) ([]model.Candle, error) {
	var resp tdResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("twelvedata decode: %w", err)
	}
	if resp.Status == "error" {
		return nil, fmt.Errorf("twelvedata api error %d: %s", resp.Code, resp.Message)
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("twelvedata: no data returned")
	}

	bars := make([]model.Candle, 0, len(resp.Values))
	for _, v := range resp.Values {
		ts, err := parseTDTime(v.Datetime)
		if err != nil {
			return nil, err
		}
		var c model.Candle
		c.Time = ts
		for _, fv := range []struct {
			name string
			raw  string
			dst  *float64
		}{
			{"open", v.Open, &c.Open},
			{"high", v.High, &c.High},
			{"low", v.Low, &c.Low},
			{"close", v.Close, &c.Close},
		} {
			n, err := strconv.ParseFloat(fv.raw, 64)
			if err != nil {
				return nil, fmt.Errorf("twelvedata: %s %s: %w", v.Datetime, fv.name, err)
			}
			*fv.dst = n
		}
		if v.Volume != "" {
			if n, err := strconv.ParseFloat(v.Volume, 64); err == nil {
				c.Volume = n
			}
		}
		bars = append(bars, c)
	}
	return bars, nil
}

func parseTDTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("twelvedata: bad datetime %q", s)
}
