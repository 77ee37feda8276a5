package recorder

import (
	"context"
	"time"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordFetch(_ *FetchEvent) error     { return nil }
func (n *NoopRecorder) RecordAttempt(_ *AttemptEvent) error { return nil }
func (n *NoopRecorder) Summary(_ context.Context, _ time.Time) ([]SourceSummary, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
