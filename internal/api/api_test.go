package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ForexFeed/internal/collector"
	"ForexFeed/internal/metrics"
	"ForexFeed/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T, opts collector.Options) (http.Handler, *metrics.Prometheus) {
	t.Helper()
	prom := metrics.NewPrometheus()
	col := collector.NewCollector(nil, nil, opts,
		collector.WithMetrics(prom.Metrics),
		collector.WithClock(func() time.Time { return time.Date(2024, 6, 3, 10, 7, 0, 0, time.UTC) }))
	h := NewHandler(col, false, zap.NewNop())
	return NewRouter(h, prom.Handler(), zap.NewNop()), prom
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestGetCandles_Demo(t *testing.T) {
	r, _ := newTestRouter(t, collector.DefaultOptions())

	w := get(t, r, "/api/v1/candles?pair=EUR/USD&timeframe=15m&count=100&demo=true")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var s model.CandleSeries
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, model.Pair("EURUSD"), s.Pair)
	assert.True(t, s.Synthetic)
	assert.Equal(t, "demo", s.Source)
	require.Len(t, s.Candles, 100)
	assert.Equal(t, 15*time.Minute, s.Candles[1].Time.Sub(s.Candles[0].Time))
	assert.NotEmpty(t, s.FetchID)
}

func TestGetCandles_NoSourcesFallsBackToSynthetic(t *testing.T) {
	r, _ := newTestRouter(t, collector.DefaultOptions())

	w := get(t, r, "/api/v1/candles?pair=USDJPY&timeframe=1d&count=30")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"synthetic":true`)
}

func TestGetCandles_Errors(t *testing.T) {
	opts := collector.DefaultOptions()
	opts.SynthesisEnabled = false
	r, _ := newTestRouter(t, opts)

	cases := []struct {
		target string
		status int
	}{
		{"/api/v1/candles?pair=EURUSD&timeframe=1h&count=5000", http.StatusBadRequest},
		{"/api/v1/candles?pair=EURUSD&timeframe=3h", http.StatusBadRequest},
		{"/api/v1/candles?pair=EURUSD&count=abc", http.StatusBadRequest},
		{"/api/v1/candles?pair=EURUSD&demo=maybe", http.StatusBadRequest},
		{"/api/v1/candles?timeframe=1h", http.StatusBadRequest},
		{"/api/v1/candles?pair=EURUSD&timeframe=1h", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		w := get(t, r, tc.target)
		assert.Equal(t, tc.status, w.Code, tc.target)
		assert.Contains(t, w.Body.String(), `"error"`, tc.target)
	}
}

func TestSourcesAndCatalogue(t *testing.T) {
	r, _ := newTestRouter(t, collector.DefaultOptions())

	w := get(t, r, "/api/v1/sources")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sources":[]}`, w.Body.String())

	w = get(t, r, "/api/v1/pairs")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Pairs      []string `json:"pairs"`
		Timeframes []string `json:"timeframes"`
		MaxCount   int      `json:"max_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Pairs, "EURUSD")
	assert.Len(t, body.Timeframes, 8)
	assert.Equal(t, 1000, body.MaxCount)
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, collector.DefaultOptions())

	assert.Equal(t, http.StatusOK, get(t, r, "/healthz").Code)
	get(t, r, "/api/v1/candles?pair=EURUSD&timeframe=1h&count=10&demo=1")

	w := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `forexfeed_series_served_total{source="demo",synthetic="true"} 1`))
}

type cancelledProvider struct{ Provider }

func (cancelledProvider) Fetch(context.Context, string, string, int, bool) (*model.CandleSeries, error) {
	return nil, context.DeadlineExceeded
}

func (cancelledProvider) Status() []model.SourceStatus { return nil }

func TestGetCandles_Timeout(t *testing.T) {
	h := NewHandler(cancelledProvider{}, false, zap.NewNop())
	w := get(t, NewRouter(h, nil, zap.NewNop()), "/api/v1/candles?pair=EURUSD")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}
