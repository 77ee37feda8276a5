package collector

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ForexFeed/internal/model"
)

const stooqBaseURL = "https://stooq.com"

// StooqFetcher downloads daily and weekly history as CSV. No key is required.
type StooqFetcher struct {
	base
	BaseURL string
}

func NewStooqFetcher(desc model.SourceDescriptor, timeout time.Duration, proxyURL string) *StooqFetcher {
	return &StooqFetcher{
		base: base{
			desc:   desc,
			client: newHTTPClient(timeout, proxyURL),
		},
		BaseURL: stooqBaseURL,
	}
}

func (f *StooqFetcher) Configured() bool { return true }

func (f *StooqFetcher) Supports(tf model.Timeframe) bool {
	return tf == model.Timeframe1d || tf == model.Timeframe1w
}

func (f *StooqFetcher) Request(ctx context.Context, req Request) ([]byte, error) {
	interval := "d"
	if req.Timeframe == model.Timeframe1w {
		interval = "w"
	}
	q := url.Values{}
	q.Set("s", strings.ToLower(string(req.Pair)))
	q.Set("i", interval)
	return f.get(ctx, f.BaseURL+"/q/d/l/?"+q.Encode(), nil)
}

// Parse reads "Date,Open,High,Low,Close[,Volume]" rows. Column order comes from the header.
func (f *StooqFetcher) Parse(raw []byte, _ Request) ([]model.Candle, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.EqualFold(trimmed, []byte("No data")) {
		return nil, fmt.Errorf("stooq: no data returned")
	}

	r := csv.NewReader(bytes.NewReader(trimmed))
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("stooq header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("stooq: missing column %q", name)
		}
	}
	volCol, hasVol := col["volume"]

	var bars []model.Candle
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stooq row: %w", err)
		}
		ts, err := time.ParseInLocation("2006-01-02", rec[col["date"]], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("stooq date %q: %w", rec[col["date"]], err)
		}
		c := model.Candle{Time: ts}
		for name, dst := range map[string]*float64{
			"open": &c.Open, "high": &c.High, "low": &c.Low, "close": &c.Close,
		} {
			n, err := strconv.ParseFloat(rec[col[name]], 64)
			if err != nil {
				return nil, fmt.Errorf("stooq %s %s: %w", rec[col["date"]], name, err)
			}
			*dst = n
		}
		if hasVol && volCol < len(rec) {
			if n, err := strconv.ParseFloat(rec[volCol], 64); err == nil {
				c.Volume = n
			}
		}
		bars = append(bars, c)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("stooq: no rows")
	}
	return bars, nil
}
