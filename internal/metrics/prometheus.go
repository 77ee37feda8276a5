package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "forexfeed"

type promVec struct {
	vec *prometheus.CounterVec
}

func (p promVec) With(labels ...string) Counter {
	return p.vec.WithLabelValues(labels...)
}

type Prometheus struct {
	Metrics *Metrics

	registry        *prometheus.Registry
	sourceAttempts  *prometheus.CounterVec
	seriesServed    *prometheus.CounterVec
	quotaRejections *prometheus.CounterVec
	invalidRequests prometheus.Counter
	noData          prometheus.Counter
	cacheHits       prometheus.Counter
	fetchSeconds    prometheus.Histogram
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	sourceAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "source_attempts_total",
		Help:      "Source trials by outcome (ok, failed, skipped_credential, skipped_quota, skipped_timeframe).",
	}, []string{"source", "result"})
	seriesServed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "series_served_total",
		Help:      "Candle series returned to callers.",
	}, []string{"source", "synthetic"})
	quotaRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "quota_rejections_total",
		Help:      "Source trials skipped because a quota window was exhausted.",
	}, []string{"source"})
	invalidRequests := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "invalid_requests_total",
		Help:      "Fetch calls rejected for out-of-bound arguments.",
	})
	noData := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "no_data_total",
		Help:      "Fetch calls that ended with every source down and synthesis disabled.",
	})
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cache_hits_total",
		Help:      "Fetch calls served from the response cache.",
	})
	fetchSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: promNamespace,
		Name:      "fetch_duration_seconds",
		Help:      "Wall time of a full fetch call including fallbacks.",
		Buckets:   prometheus.DefBuckets,
	})

	registry.MustRegister(sourceAttempts, seriesServed, quotaRejections, invalidRequests, noData, cacheHits, fetchSeconds)

	m := &Metrics{
		SourceAttempts:  promVec{sourceAttempts},
		SeriesServed:    promVec{seriesServed},
		QuotaRejections: promVec{quotaRejections},
		InvalidRequests: invalidRequests,
		NoData:          noData,
		CacheHits:       cacheHits,
		FetchSeconds:    fetchSeconds,
	}

	return &Prometheus{
		Metrics:         m,
		registry:        registry,
		sourceAttempts:  sourceAttempts,
		seriesServed:    seriesServed,
		quotaRejections: quotaRejections,
		invalidRequests: invalidRequests,
		noData:          noData,
		cacheHits:       cacheHits,
		fetchSeconds:    fetchSeconds,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
