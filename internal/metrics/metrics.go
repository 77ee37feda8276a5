package metrics

type Counter interface {
	Inc()
}

// CounterVec hands out a Counter per label combination.
type CounterVec interface {
	With(labels ...string) Counter
}

type Observer interface {
	Observe(v float64)
}

type Metrics struct {
	SourceAttempts  CounterVec // source, result
	SeriesServed    CounterVec // source, synthetic
	QuotaRejections CounterVec // source
	InvalidRequests Counter
	NoData          Counter
	CacheHits       Counter
	FetchSeconds    Observer
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopVec struct{}

func (noopVec) With(...string) Counter { return noopCounter{} }

type noopObserver struct{}

func (noopObserver) Observe(float64) {}

func NewNoop() *Metrics {
	return &Metrics{
		SourceAttempts:  noopVec{},
		SeriesServed:    noopVec{},
		QuotaRejections: noopVec{},
		InvalidRequests: noopCounter{},
		NoData:          noopCounter{},
		CacheHits:       noopCounter{},
		FetchSeconds:    noopObserver{},
	}
}
