package model

import "errors"

var (
	// ErrInvalidRequest is returned for malformed or out-of-bound pair, timeframe or count.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoDataAvailable is returned when every source failed and synthesis is disabled.
	ErrNoDataAvailable = errors.New("no data available")
	// ErrSourceUnavailable wraps a single source failure. It never leaves the provider.
	ErrSourceUnavailable = errors.New("source unavailable")
)
