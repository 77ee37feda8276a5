package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ForexFeed/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, check func(r *http.Request), status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func roundTrip(t *testing.T, f Fetcher, req Request) ([]model.Candle, error) {
	t.Helper()
	raw, err := f.Request(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return f.Parse(raw, req)
}

const yahooBody = `{"chart":{"result":[{"timestamp":[1717416000,1717419600,1717423200],
"indicators":{"quote":[{"open":[1.0850,null,1.0862],"high":[1.0860,null,1.0870],
"low":[1.0845,null,1.0858],"close":[1.0855,null,1.0866],"volume":[0,null,0]}]}}],"error":null}}`

func TestYahooFetcher(t *testing.T) {
	srv := serve(t, func(r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/EURUSD=X", r.URL.Path)
		assert.Equal(t, "60m", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
	}, http.StatusOK, yahooBody)

	f := NewYahooFetcher(model.SourceDescriptor{Name: "yahoo"}, time.Second, "")
	f.BaseURL = srv.URL
	assert.True(t, f.Configured())

	bars, err := roundTrip(t, f, Request{Pair: "EURUSD", Timeframe: model.Timeframe1h, Count: 2})
	require.NoError(t, err)
	require.Len(t, bars, 2, "null bar dropped")
	assert.Equal(t, time.Unix(1717416000, 0).UTC(), bars[0].Time)
	assert.Equal(t, 1.0866, bars[1].Close)
}

func TestYahooFetcher_MappedSymbolAndError(t *testing.T) {
	srv := serve(t, func(r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/GC=F", r.URL.Path)
	}, http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)

	f := NewYahooFetcher(model.SourceDescriptor{Name: "yahoo"}, time.Second, "")
	f.BaseURL = srv.URL
	_, err := roundTrip(t, f, Request{Pair: "XAUUSD", Timeframe: model.Timeframe1d, Count: 5})
	assert.ErrorContains(t, err, "No data found")
}

func TestYahooRange(t *testing.T) {
	assert.Equal(t, "1d", yahooRange(model.Timeframe1m, 60))
	assert.Equal(t, "5d", yahooRange(model.Timeframe1m, 1000))
	assert.Equal(t, "1mo", yahooRange(model.Timeframe15m, 1000))
	assert.Equal(t, "1y", yahooRange(model.Timeframe1d, 200))
	assert.Equal(t, "max", yahooRange(model.Timeframe1w, 1000))
}

func TestHTTPStatusError(t *testing.T) {
	srv := serve(t, nil, http.StatusTooManyRequests, "slow down")
	f := NewYahooFetcher(model.SourceDescriptor{Name: "yahoo"}, time.Second, "")
	f.BaseURL = srv.URL

	_, err := f.Request(context.Background(), Request{Pair: "EURUSD", Timeframe: model.Timeframe1d, Count: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "slow down")
}

func TestHTTPTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	f := NewYahooFetcher(model.SourceDescriptor{Name: "yahoo"}, 50*time.Millisecond, "")
	f.BaseURL = srv.URL
	_, err := f.Request(context.Background(), Request{Pair: "EURUSD", Timeframe: model.Timeframe1d, Count: 5})
	assert.Error(t, err)
}

const alphaBody = `{
  "Meta Data": {"1. Information": "FX Intraday (15min) Time Series"},
  "Time Series FX (15min)": {
    "2024-06-03 14:30:00": {"1. open": "1.08500", "2. high": "1.08600", "3. low": "1.08450", "4. close": "1.08550"},
    "2024-06-03 14:15:00": {"1. open": "1.08400", "2. high": "1.08520", "3. low": "1.08380", "4. close": "1.08500"}
  }
}`

func TestAlphaVantageFetcher(t *testing.T) {
	srv := serve(t, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "FX_INTRADAY", q.Get("function"))
		assert.Equal(t, "EUR", q.Get("from_symbol"))
		assert.Equal(t, "USD", q.Get("to_symbol"))
		assert.Equal(t, "15min", q.Get("interval"))
		assert.Equal(t, "compact", q.Get("outputsize"))
		assert.Equal(t, "key", q.Get("apikey"))
	}, http.StatusOK, alphaBody)

	f := NewAlphaVantageFetcher(model.SourceDescriptor{Name: "alphavantage"}, "key", time.Second, "")
	f.BaseURL = srv.URL
	assert.True(t, f.Descriptor().RequiresCredential)

	bars, err := roundTrip(t, f, Request{Pair: "EURUSD", Timeframe: model.Timeframe15m, Count: 2})
	require.NoError(t, err)
	require.Len(t, bars, 2)

	out, err := normalize(bars, Request{Pair: "EURUSD", Timeframe: model.Timeframe15m, Count: 2})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 14, 15, 0, 0, time.UTC), out[0].Time)
	assert.Equal(t, 1.0855, out[1].Close)
}

func TestAlphaVantageFetcher_RateLimitNote(t *testing.T) {
	srv := serve(t, nil, http.StatusOK, `{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`)
	f := NewAlphaVantageFetcher(model.SourceDescriptor{Name: "alphavantage"}, "key", time.Second, "")
	f.BaseURL = srv.URL

	_, err := roundTrip(t, f, Request{Pair: "EURUSD", Timeframe: model.Timeframe1d, Count: 2})
	assert.ErrorContains(t, err, "rate limit")
}

func TestAlphaVantageFetcher_Unconfigured(t *testing.T) {
	f := NewAlphaVantageFetcher(model.SourceDescriptor{Name: "alphavantage"}, "", time.Second, "")
	assert.False(t, f.Configured())
}

const twelveBody = `{"meta":{"symbol":"EUR/USD","interval":"1h"},"values":[
{"datetime":"2024-06-03 14:00:00","open":"1.08500","high":"1.08600","low":"1.08450","close":"1.08550"},
{"datetime":"2024-06-03 13:00:00","open":"1.08400","high":"1.08520","low":"1.08380","close":"1.08500"},
{"datetime":"2024-06-03 12:00:00","open":"1.08300","high":"1.08450","low":"1.08280","close":"1.08400"}],"status":"ok"}`

func TestTwelveDataFetcher(t *testing.T) {
	srv := serve(t, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/time_series", r.URL.Path)
		assert.Equal(t, "EUR/USD", q.Get("symbol"))
		assert.Equal(t, "1h", q.Get("interval"))
		assert.Equal(t, "3", q.Get("outputsize"))
		assert.Equal(t, "UTC", q.Get("timezone"))
	}, http.StatusOK, twelveBody)

	f := NewTwelveDataFetcher(model.SourceDescriptor{Name: "twelvedata"}, "key", time.Second, "")
	f.BaseURL = srv.URL

	bars, err := roundTrip(t, f, Request{Pair: "EURUSD", Timeframe: model.Timeframe1h, Count: 3})
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 1.084, bars[2].Close)
}

func TestTwelveDataFetcher_APIError(t *testing.T) {
	srv := serve(t, nil, http.StatusOK, `{"code":401,"message":"**apikey** parameter is incorrect","status":"error"}`)
	f := NewTwelveDataFetcher(model.SourceDescriptor{Name: "twelvedata"}, "bad", time.Second, "")
	f.BaseURL = srv.URL

	_, err := roundTrip(t, f, Request{Pair: "EURUSD", Timeframe: model.Timeframe1h, Count: 3})
	assert.ErrorContains(t, err, "401")
}

func TestStooqFetcher(t *testing.T) {
	srv := serve(t, func(r *http.Request) {
		assert.Equal(t, "eurusd", r.URL.Query().Get("s"))
		assert.Equal(t, "w", r.URL.Query().Get("i"))
	}, http.StatusOK, "Date,Open,High,Low,Close\n2024-05-20,1.0870,1.0895,1.0800,1.0820\n2024-05-27,1.0820,1.0880,1.0790,1.0848\n")

	f := NewStooqFetcher(model.SourceDescriptor{Name: "stooq"}, time.Second, "")
	f.BaseURL = srv.URL
	assert.False(t, f.Supports(model.Timeframe1h))
	assert.True(t, f.Supports(model.Timeframe1w))

	bars, err := roundTrip(t, f, Request{Pair: "EURUSD", Timeframe: model.Timeframe1w, Count: 2})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2024, 5, 27, 0, 0, 0, 0, time.UTC), bars[1].Time)
	assert.Equal(t, 1.0848, bars[1].Close)
}

func TestStooqFetcher_NoData(t *testing.T) {
	srv := serve(t, nil, http.StatusOK, "No data")
	f := NewStooqFetcher(model.SourceDescriptor{Name: "stooq"}, time.Second, "")
	f.BaseURL = srv.URL
	_, err := roundTrip(t, f, Request{Pair: "EURUSD", Timeframe: model.Timeframe1d, Count: 2})
	assert.ErrorContains(t, err, "no data")
}

func TestRESTFetcher(t *testing.T) {
	srv := serve(t, func(r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "GBPUSD", r.URL.Query().Get("pair"))
		assert.Equal(t, "4h", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
	}, http.StatusOK, `{"data":{"bars":[
		{"t":1717401600000,"o":"1.2700","h":1.2750,"l":1.2690,"c":1.2740,"v":12},
		{"t":1717416000000,"o":1.2740,"h":1.2760,"l":1.2720,"c":1.2730}
	]}}`)

	mapping := RESTMapping{Items: "data.bars", Time: "t", TimeUnit: "ms", Open: "o", High: "h", Low: "l", Close: "c", Volume: "v", PairParam: "pair"}
	f := NewRESTFetcher(model.SourceDescriptor{Name: "rest"}, srv.URL+"/", "secret", mapping, time.Second, "")
	assert.True(t, f.Configured())

	bars, err := roundTrip(t, f, Request{Pair: "GBPUSD", Timeframe: model.Timeframe4h, Count: 2})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.UnixMilli(1717401600000).UTC(), bars[0].Time)
	assert.Equal(t, 1.27, bars[0].Open)
	assert.Equal(t, 12.0, bars[0].Volume)
	assert.Zero(t, bars[1].Volume)
}

func TestRESTFetcher_UnconfiguredWithoutBaseURL(t *testing.T) {
	f := NewRESTFetcher(model.SourceDescriptor{Name: "rest"}, "", "", RESTMapping{}, time.Second, "")
	assert.False(t, f.Configured())
}

func TestCollectorOverHTTP(t *testing.T) {
	down := serve(t, nil, http.StatusServiceUnavailable, "maintenance")
	up := serve(t, nil, http.StatusOK, twelveBody)

	y := NewYahooFetcher(model.SourceDescriptor{Name: "yahoo", Priority: 1}, time.Second, "")
	y.BaseURL = down.URL
	td := NewTwelveDataFetcher(model.SourceDescriptor{Name: "twelvedata", Priority: 2}, "key", time.Second, "")
	td.BaseURL = up.URL

	c := NewCollector([]Fetcher{td, y}, nil, DefaultOptions(), WithClock(fixedClock))
	s, err := c.Fetch(context.Background(), "EUR/USD", "1h", 2, false)
	require.NoError(t, err)
	assert.Equal(t, "twelvedata", s.Source)
	require.Len(t, s.Candles, 2)
	assert.Equal(t, time.Date(2024, 6, 3, 13, 0, 0, 0, time.UTC), s.Candles[0].Time)
	assert.Equal(t, time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC), s.Candles[1].Time)
}
