package recorder

import (
	"time"

	"EconDash/internal/model"
)

// AccumulationEvent records one load-fetch-merge-save run for a series.
type AccumulationEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	SeriesName string    `json:"series_name"`
	SeriesKey  string    `json:"series_key"`
	RangeStart string    `json:"range_start,omitempty"` // empty when no fetch was needed
	RangeEnd   string    `json:"range_end,omitempty"`
	Fetched    int       `json:"fetched"`
	TotalRows  int       `json:"total_rows"`
	Status     string    `json:"status"` // "fresh", "up_to_date", "stale", "empty"
	Error      string    `json:"error,omitempty"`
}

// Recorder persists an audit trail of refreshes and index quotes.
type Recorder interface {
	RecordAccumulation(evt *AccumulationEvent) error
	RecordIndexQuotes(quotes []model.IndexQuote) error
	RecentAccumulations(limit int) ([]AccumulationEvent, error)
	Close() error
}
