package accumulator

import (
	"context"
	"log"
	"time"

	"EconDash/internal/collector"
	"EconDash/internal/metrics"
	"EconDash/internal/model"
	"EconDash/internal/recorder"
	"EconDash/internal/store"
)

// DefaultHistoryDays is how far back the first fetch of a series reaches.
const DefaultHistoryDays = 100

// Status tells the caller how current a returned table is.
type Status string

const (
	StatusFresh    Status = "fresh"      // new range fetched successfully
	StatusUpToDate Status = "up_to_date" // nothing left to fetch
	StatusStale    Status = "stale"      // fetch or save failed; cached rows returned
	StatusEmpty    Status = "empty"      // no rows available at all
)

// Result is the outcome of one accumulation. Table is always renderable,
// sorted by date and unique by date.
type Result struct {
	Name    string
	Key     string
	Table   model.Table
	Status  Status
	Fetched int
	From    model.Date // zero when no fetch was issued
	To      model.Date
	Err     error
}

// Accumulator keeps the local cache of a series up to date by fetching only
// the dates it does not hold yet.
type Accumulator struct {
	Store     *store.Store
	Fetcher   collector.SeriesFetcher
	Providers map[string]collector.SeriesFetcher // optional, selected by SeriesSpec.Provider
	Recorder  recorder.Recorder
	Metrics   *metrics.Metrics

	HistoryDays int
	Now         func() time.Time
}

// New creates an Accumulator using fetcher for every series.
func New(st *store.Store, fetcher collector.SeriesFetcher) *Accumulator {
	return &Accumulator{
		Store:       st,
		Fetcher:     fetcher,
		Providers:   map[string]collector.SeriesFetcher{},
		Recorder:    recorder.NewNoopRecorder(),
		HistoryDays: DefaultHistoryDays,
		Now:         time.Now,
	}
}

// GetUpdated returns the full, up-to-date table of the series stored under
// name, fetching the missing range of key from the default fetcher.
func (a *Accumulator) GetUpdated(ctx context.Context, key, name string) Result {
	return a.accumulate(ctx, a.Fetcher, key, name)
}

// Refresh is GetUpdated for a configured series, honouring its provider.
func (a *Accumulator) Refresh(ctx context.Context, spec model.SeriesSpec) Result {
	return a.accumulate(ctx, a.fetcherFor(spec.Provider), spec.Key, spec.Name)
}

// RefreshAll refreshes every series in order.
func (a *Accumulator) RefreshAll(ctx context.Context, specs []model.SeriesSpec) []Result {
	results := make([]Result, 0, len(specs))
	for _, spec := range specs {
		results = append(results, a.Refresh(ctx, spec))
	}
	return results
}

func (a *Accumulator) fetcherFor(provider string) collector.SeriesFetcher {
	if f, ok := a.Providers[provider]; ok && provider != "" {
		return f
	}
	return a.Fetcher
}

func (a *Accumulator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// PlanRange returns the closed date range still missing from existing.
// need is false when the table already reaches today.
func PlanRange(existing model.Table, today model.Date, historyDays int) (from, to model.Date, need bool) {
	to = today
	if max, ok := existing.MaxDate(); ok {
		from = max.AddDays(1)
	} else {
		from = today.AddDays(-historyDays)
	}
	return from, to, !from.After(to)
}

// Merge concatenates existing and fetched rows, keeping one row per date.
// A fetched row replaces a stored row of the same date. The result is sorted.
func Merge(existing, fetched model.Table) model.Table {
	out := make(model.Table, 0, len(existing)+len(fetched))
	index := make(map[model.Date]int, len(existing)+len(fetched))
	for _, src := range []model.Table{existing, fetched} {
		for _, o := range src {
			if i, ok := index[o.Date]; ok {
				out[i] = o
				continue
			}
			index[o.Date] = len(out)
			out = append(out, o)
		}
	}
	out.SortByDate()
	return out
}

func (a *Accumulator) accumulate(ctx context.Context, f collector.SeriesFetcher, key, name string) Result {
	res := Result{Name: name, Key: key}

	unlock, err := a.Store.Lock(ctx)
	if err != nil {
		log.Printf("[WARN] %s: store lock failed, serving cached data: %v", name, err)
		snap, _ := a.Store.Load()
		res.Table = Merge(snap[name], nil)
		res.Err = err
		res.Status = statusOf(res, false)
		a.report(res)
		return res
	}
	defer unlock()

	snap, err := a.Store.Load()
	if err != nil {
		log.Printf("[WARN] %v", err)
		a.Metrics.IncStoreCorruption()
	}
	existing := snap[name]

	from, to, need := PlanRange(existing, model.DateOf(a.now()), a.historyDays())
	var fetched model.Table
	if need {
		res.From, res.To = from, to
		started := time.Now()
		fetched, err = f.FetchSeries(ctx, key, from, to)
		outcome := "ok"
		if err != nil {
			outcome = string(collector.KindOf(err))
			if outcome == "" {
				outcome = "error"
			}
			log.Printf("[WARN] %s (%s): fetch %s..%s failed, keeping cached rows: %v", name, key, from, to, err)
			res.Err = err
			fetched = nil
		}
		a.Metrics.ObserveFetch(f.Name(), outcome, time.Since(started))
	}

	merged := Merge(existing, fetched)
	snap[name] = merged
	if err := a.Store.Save(snap); err != nil {
		log.Printf("[ERROR] %s: save snapshot: %v", name, err)
		if res.Err == nil {
			res.Err = err
		}
	}

	res.Table = merged
	res.Fetched = len(fetched)
	res.Status = statusOf(res, need)
	a.report(res)
	return res
}

func (a *Accumulator) historyDays() int {
	if a.HistoryDays <= 0 {
		return DefaultHistoryDays
	}
	return a.HistoryDays
}

func statusOf(res Result, fetched bool) Status {
	switch {
	case len(res.Table) == 0:
		return StatusEmpty
	case res.Err != nil:
		return StatusStale
	case !fetched:
		return StatusUpToDate
	default:
		return StatusFresh
	}
}

func (a *Accumulator) report(res Result) {
	a.Metrics.ObserveAccumulation(res.Name, string(res.Status), res.Fetched, len(res.Table))
	if a.Recorder == nil {
		return
	}
	evt := &recorder.AccumulationEvent{
		Timestamp:  a.now(),
		SeriesName: res.Name,
		SeriesKey:  res.Key,
		Fetched:    res.Fetched,
		TotalRows:  len(res.Table),
		Status:     string(res.Status),
	}
	if !res.From.IsZero() {
		evt.RangeStart, evt.RangeEnd = res.From.String(), res.To.String()
	}
	if res.Err != nil {
		evt.Error = res.Err.Error()
	}
	if err := a.Recorder.RecordAccumulation(evt); err != nil {
		log.Printf("[ERROR] record accumulation: %v", err)
	}
}
