package collector

import (
	"context"

	"EconDash/internal/model"
)

// SeriesFetcher retrieves the observations of one series for the closed
// interval [start, end]. On failure it returns an empty, non-nil table
// together with a *FetchError.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, key string, start, end model.Date) (model.Table, error)
	Name() string
}
