package recorder

import "EconDash/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordAccumulation(_ *AccumulationEvent) error { return nil }
func (n *NoopRecorder) RecordIndexQuotes(_ []model.IndexQuote) error { return nil }
func (n *NoopRecorder) RecentAccumulations(_ int) ([]AccumulationEvent, error) { return nil, nil }
func (n *NoopRecorder) Close() error { return nil }
