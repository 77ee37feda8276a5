package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ForexFeed/internal/model"

	"github.com/tidwall/gjson"
)

// RESTMapping locates candle fields in an arbitrary JSON response using gjson paths.
type RESTMapping struct {
	Items    string // path to the candle array; empty means the document root
	Time     string
	TimeUnit string // "s", "ms" or a Go time layout
	Open     string
	High     string
	Low      string
	Close    string
	Volume   string // optional

	PairParam  string
	TFParam    string
	CountParam string
}

// DefaultRESTMapping matches a plain array of {timestamp, open, high, low, close, volume} objects.
func DefaultRESTMapping() RESTMapping {
	return RESTMapping{
		Time:       "timestamp",
		TimeUnit:   "s",
		Open:       "open",
		High:       "high",
		Low:        "low",
		Close:      "close",
		Volume:     "volume",
		PairParam:  "symbol",
		TFParam:    "interval",
		CountParam: "limit",
	}
}

// merge fills empty fields of m from def.
func (m RESTMapping) merge(def RESTMapping) RESTMapping {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return RESTMapping{
		Items:      m.Items,
		Time:       pick(m.Time, def.Time),
		TimeUnit:   pick(m.TimeUnit, def.TimeUnit),
		Open:       pick(m.Open, def.Open),
		High:       pick(m.High, def.High),
		Low:        pick(m.Low, def.Low),
		Close:      pick(m.Close, def.Close),
		Volume:     pick(m.Volume, def.Volume),
		PairParam:  pick(m.PairParam, def.PairParam),
		TFParam:    pick(m.TFParam, def.TFParam),
		CountParam: pick(m.CountParam, def.CountParam),
	}
}

// RESTFetcher implements Fetcher for any JSON bar endpoint described by a RESTMapping.
// The API key, when set, is sent as a bearer token.
type RESTFetcher struct {
	base
	BaseURL string
	Mapping RESTMapping
}

// NewRESTFetcher creates a generic fetcher. It is unconfigured until baseURL is set.
func NewRESTFetcher(desc model.SourceDescriptor, baseURL, apiKey string, mapping RESTMapping, timeout time.Duration, proxyURL string) *RESTFetcher {
	return &RESTFetcher{
		base: base{
			desc:   desc,
			apiKey: apiKey,
			client: newHTTPClient(timeout, proxyURL),
		},
		BaseURL: strings.TrimRight(baseURL, "/"),
		Mapping: mapping.merge(DefaultRESTMapping()),
	}
}

func (f *RESTFetcher) Configured() bool { return f.BaseURL != "" }

func (f *RESTFetcher) Supports(tf model.Timeframe) bool { return tf.Valid() }

func (f *RESTFetcher) Request(ctx context.Context, req Request) ([]byte, error) {
	q := url.Values{}
	q.Set(f.Mapping.PairParam, string(req.Pair))
	q.Set(f.Mapping.TFParam, string(req.Timeframe))
	q.Set(f.Mapping.CountParam, strconv.Itoa(req.Count))

	endpoint := f.BaseURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + q.Encode()
	} else {
		endpoint += "?" + q.Encode()
	}
	var header http.Header
	if f.apiKey != "" {
		header = http.Header{"Authorization": []string{"Bearer " + f.apiKey}}
	}
	return f.get(ctx, endpoint, header)
}

func (f *RESTFetcher) Parse(raw []byte, _ Request) ([]model.Candle, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("rest: invalid json")
	}
	items := gjson.ParseBytes(raw)
	if f.Mapping.Items != "" {
		items = items.Get(f.Mapping.Items)
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("rest: %q is not an array", f.Mapping.Items)
	}

	var bars []model.Candle
	for i, item := range items.Array() {
		ts, err := f.parseTime(item.Get(f.Mapping.Time))
		if err != nil {
			return nil, fmt.Errorf("rest: item %d: %w", i, err)
		}
		c := model.Candle{Time: ts}
		for _, fv := range []struct {
			path string
			dst  *float64
		}{
			{f.Mapping.Open, &c.Open},
			{f.Mapping.High, &c.High},
			{f.Mapping.Low, &c.Low},
			{f.Mapping.Close, &c.Close},
		} {
			n, err := number(item.Get(fv.path))
			if err != nil {
				return nil, fmt.Errorf("rest: item %d field %q: %w", i, fv.path, err)
			}
			*fv.dst = n
		}
		if v := item.Get(f.Mapping.Volume); v.Exists() {
			if n, err := number(v); err == nil {
				c.Volume = n
			}
		}
		bars = append(bars, c)
	}
	return bars, nil
}

func (f *RESTFetcher) parseTime(v gjson.Result) (time.Time, error) {
	if !v.Exists() {
		return time.Time{}, fmt.Errorf("time field %q missing", f.Mapping.Time)
	}
	switch f.Mapping.TimeUnit {
	case "s":
		n, err := number(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(int64(n), 0).UTC(), nil
	case "ms":
		n, err := number(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(int64(n)).UTC(), nil
	default:
		return time.ParseInLocation(f.Mapping.TimeUnit, v.String(), time.UTC)
	}
}

// number accepts JSON numbers and numeric strings.
func number(v gjson.Result) (float64, error) {
	switch v.Type {
	case gjson.Number:
		return v.Float(), nil
	case gjson.String:
		return strconv.ParseFloat(v.String(), 64)
	default:
		return 0, fmt.Errorf("not numeric: %s", v.Raw)
	}
}
