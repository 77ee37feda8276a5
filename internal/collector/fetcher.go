package collector

import (
	"context"

	"ForexFeed/internal/model"
)

// Request is a validated fetch request.
type Request struct {
	Pair      model.Pair
	Timeframe model.Timeframe
	Count     int
}

// Fetcher adapts one remote data source. Request performs the network call and
// Parse turns the raw body into candles; the collector owns ordering, trimming
// and validation.
type Fetcher interface {
	Name() string
	Descriptor() model.SourceDescriptor
	// Configured reports whether required credentials or endpoints are present.
	Configured() bool
	Supports(tf model.Timeframe) bool
	Request(ctx context.Context, req Request) ([]byte, error)
	Parse(raw []byte, req Request) ([]model.Candle, error)
}
