package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ForexFeed/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTelegramSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42", "", zap.NewNop())
	tg.APIBase = srv.URL
	require.NoError(t, tg.Send(context.Background(), "<b>hi</b>"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Equal(t, "<b>hi</b>", got["text"])
}

func TestTelegramSendWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42", "", zap.NewNop())
	tg.APIBase = srv.URL
	require.NoError(t, tg.SendWithRetry(context.Background(), "hello", 3))
	assert.EqualValues(t, 2, calls.Load())
}

func TestTelegramSendWithRetry_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42", "", zap.NewNop())
	tg.APIBase = srv.URL
	err := tg.SendWithRetry(context.Background(), "hello", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.EqualValues(t, 1, calls.Load())
}

func TestStartPolling(t *testing.T) {
	var sent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if r.URL.Query().Get("offset") == "0" {
				_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"text":" /status "}}]}`))
				return
			}
			<-r.Context().Done()
		case "/botTOKEN/sendMessage":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			sent.Store(body["text"])
		}
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42", "", zap.NewNop())
	tg.APIBase = srv.URL

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tg.StartPolling(ctx, func(_ context.Context, cmd string) string { return "reply to " + cmd })
		close(done)
	}()

	require.Eventually(t, func() bool { return sent.Load() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "reply to /status", sent.Load())
	cancel()
	<-done
}

func TestFormatSeries(t *testing.T) {
	ts := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	s := &model.CandleSeries{
		Pair: "EURUSD", Timeframe: model.Timeframe1h, Source: "demo", Synthetic: true,
		Candles: []model.Candle{
			{Time: ts.Add(-time.Hour), Open: 1.08, High: 1.09, Low: 1.07, Close: 1.085},
			{Time: ts, Open: 1.085, High: 1.1, Low: 1.08, Close: 1.0908},
		},
	}
	out := FormatSeries(s)
	assert.Contains(t, out, "EUR/USD 1h")
	assert.Contains(t, out, "synthetic")
	assert.Contains(t, out, "Last: 1.09080")
	assert.Contains(t, out, "Range: 1.07000 – 1.10000")
	assert.Contains(t, out, "+1.00%")
	assert.Contains(t, out, "RSI14: 50")
}

func TestFormatSourceStatus(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	out := FormatSourceStatus([]model.SourceStatus{
		{
			Descriptor: model.SourceDescriptor{Name: "alphavantage", Priority: 2},
			Configured: true,
			Quota:      []model.QuotaUsage{{Ceiling: 5, Window: "@every 1m", Used: 5, ResetsAt: now.Add(30 * time.Second), Exhausted: true}},
		},
		{Descriptor: model.SourceDescriptor{Name: "twelvedata", Priority: 1}},
		{Descriptor: model.SourceDescriptor{Name: "yahoo", Priority: 3}, Configured: true, LastError: "status <500>"},
	}, now)

	assert.Contains(t, out, "⏳ <b>alphavantage</b>")
	assert.Contains(t, out, "5/5 per @every 1m, resets in 30s")
	assert.Contains(t, out, "twelvedata</b> (#1) not configured")
	assert.Contains(t, out, "status &lt;500&gt;")
}

func TestFormatDegradedAndRecovered(t *testing.T) {
	out := FormatDegraded("GBPUSD", model.Timeframe15m, []model.SourceStatus{
		{Descriptor: model.SourceDescriptor{Name: "yahoo"}, LastError: "timeout"},
		{Descriptor: model.SourceDescriptor{Name: "stooq"}},
	})
	assert.Contains(t, out, "GBP/USD 15m degraded")
	assert.Contains(t, out, "yahoo: timeout")
	assert.NotContains(t, out, "stooq")

	assert.Contains(t, FormatRecovered("GBPUSD", model.Timeframe15m, "yahoo"), "Live data from yahoo")
}
