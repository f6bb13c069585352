package accumulator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"EconDash/internal/collector"
	"EconDash/internal/model"
	"EconDash/internal/store"

	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)

func obs(date string, v int64) model.Observation {
	return model.NewObservation(model.MustParseDate(date), decimal.NewFromInt(v))
}

func newTestAccumulator(t *testing.T, data map[string]model.Table) (*Accumulator, *collector.MockFetcher) {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "economic_data.json"), []string{"us_gdp", "unemployment_rate", "financial_stress"})
	mock := collector.NewMockFetcher(data)
	acc := New(st, mock)
	acc.Now = func() time.Time { return fixedNow }
	return acc, mock
}

func assertUniqueSorted(t *testing.T, tbl model.Table) {
	t.Helper()
	seen := map[model.Date]bool{}
	for i, o := range tbl {
		if seen[o.Date] {
			t.Errorf("duplicate date %s", o.Date)
		}
		seen[o.Date] = true
		if i > 0 && !tbl[i-1].Date.Before(o.Date) {
			t.Errorf("rows not sorted at %d: %s then %s", i, tbl[i-1].Date, o.Date)
		}
	}
}

func TestGetUpdated_FirstCallFetchesHistoryWindow(t *testing.T) {
	acc, mock := newTestAccumulator(t, map[string]model.Table{
		"GDP": {obs("2024-04-01", 3), obs("2023-10-01", 1), obs("2024-01-01", 2)},
	})

	res := acc.GetUpdated(context.Background(), "GDP", "us_gdp")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 fetch, got %d", mock.CallCount())
	}
	call := mock.Calls[0]
	if call.Start.String() != "2024-03-22" || call.End.String() != "2024-06-30" {
		t.Errorf("range = %s..%s, want 2024-03-22..2024-06-30", call.Start, call.End)
	}
	if len(res.Table) != 1 || res.Table[0].Date.String() != "2024-04-01" {
		t.Errorf("unexpected table %v", res.Table)
	}
	if res.Status != StatusFresh || res.Fetched != 1 {
		t.Errorf("status=%s fetched=%d", res.Status, res.Fetched)
	}

	snap, err := acc.Store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap["us_gdp"]) != 1 {
		t.Errorf("accumulated table not persisted: %v", snap["us_gdp"])
	}
}

func TestGetUpdated_IncrementalRange(t *testing.T) {
	acc, mock := newTestAccumulator(t, map[string]model.Table{
		"UNRATE": {obs("2024-06-01", 4), obs("2024-06-15", 5)},
	})
	snap := acc.Store.Default()
	snap["unemployment_rate"] = model.Table{obs("2024-05-01", 3), obs("2024-06-01", 4)}
	if err := acc.Store.Save(snap); err != nil {
		t.Fatal(err)
	}

	res := acc.GetUpdated(context.Background(), "UNRATE", "unemployment_rate")
	if mock.Calls[0].Start.String() != "2024-06-02" {
		t.Errorf("expected fetch to start the day after the last stored date, got %s", mock.Calls[0].Start)
	}
	if len(res.Table) != 3 {
		t.Fatalf("expected 3 rows, got %v", res.Table)
	}
	assertUniqueSorted(t, res.Table)
}

func TestGetUpdated_Idempotent(t *testing.T) {
	acc, _ := newTestAccumulator(t, map[string]model.Table{
		"STLFSI4": {obs("2024-06-07", -1), obs("2024-06-14", 0), obs("2024-06-21", 1)},
	})

	first := acc.GetUpdated(context.Background(), "STLFSI4", "financial_stress")
	second := acc.GetUpdated(context.Background(), "STLFSI4", "financial_stress")

	if len(first.Table) != 3 || len(second.Table) != len(first.Table) {
		t.Fatalf("tables differ: %v vs %v", first.Table, second.Table)
	}
	for i := range first.Table {
		if first.Table[i].Date != second.Table[i].Date || !first.Table[i].Value.Decimal.Equal(second.Table[i].Value.Decimal) {
			t.Errorf("row %d differs: %v vs %v", i, first.Table[i], second.Table[i])
		}
	}
	if second.Fetched != 0 {
		t.Errorf("second call should add nothing, fetched %d", second.Fetched)
	}
}

func TestGetUpdated_LastWriteWins(t *testing.T) {
	acc, _ := newTestAccumulator(t, nil)
	existing := model.Table{obs("2024-06-01", 5)}
	fetched := model.Table{obs("2024-06-01", 7), obs("2024-06-02", 8)}

	merged := Merge(existing, fetched)
	if len(merged) != 2 {
		t.Fatalf("expected 2 rows, got %v", merged)
	}
	if merged[0].Value.Decimal.IntPart() != 7 {
		t.Errorf("fetched value should win, got %s", merged[0].Value.Decimal)
	}

	// Through the accumulator: a revised value for a stored date replaces it.
	snap := acc.Store.Default()
	snap["us_gdp"] = model.Table{obs("2024-06-28", 5)}
	acc.Store.Save(snap)
	acc.Fetcher = &revisingFetcher{rows: model.Table{obs("2024-06-28", 7), obs("2024-06-29", 9)}}

	res := acc.GetUpdated(context.Background(), "GDP", "us_gdp")
	if len(res.Table) != 2 || res.Table[0].Value.Decimal.IntPart() != 7 {
		t.Errorf("expected revised row to win, got %v", res.Table)
	}
	assertUniqueSorted(t, res.Table)
}

// revisingFetcher ignores the requested range and returns rows as-is.
type revisingFetcher struct{ rows model.Table }

func (r *revisingFetcher) Name() string { return "revising" }
func (r *revisingFetcher) FetchSeries(context.Context, string, model.Date, model.Date) (model.Table, error) {
	return r.rows, nil
}

func TestGetUpdated_EmptyRangeSkipsFetch(t *testing.T) {
	acc, mock := newTestAccumulator(t, nil)
	snap := acc.Store.Default()
	snap["financial_stress"] = model.Table{obs("2024-06-21", 1), obs("2024-06-30", 2)}
	acc.Store.Save(snap)

	res := acc.GetUpdated(context.Background(), "STLFSI4", "financial_stress")
	if mock.CallCount() != 0 {
		t.Errorf("expected no fetch when the table reaches today, got %d", mock.CallCount())
	}
	if res.Status != StatusUpToDate {
		t.Errorf("status = %s", res.Status)
	}
	if len(res.Table) != 2 || res.Table[1].Date.String() != "2024-06-30" {
		t.Errorf("stored table changed: %v", res.Table)
	}
}

func TestGetUpdated_FetchFailureReturnsCached(t *testing.T) {
	acc, mock := newTestAccumulator(t, nil)
	mock.Err = &collector.FetchError{Provider: "mock", Kind: collector.KindTransport, Err: errors.New("connection refused")}

	snap := acc.Store.Default()
	snap["us_gdp"] = model.Table{obs("2024-01-01", 1)}
	acc.Store.Save(snap)

	res := acc.GetUpdated(context.Background(), "GDP", "us_gdp")
	if res.Status != StatusStale {
		t.Errorf("status = %s, want stale", res.Status)
	}
	if collector.KindOf(res.Err) != collector.KindTransport {
		t.Errorf("err = %v", res.Err)
	}
	if len(res.Table) != 1 {
		t.Errorf("cached table should be returned unchanged, got %v", res.Table)
	}

	empty := acc.GetUpdated(context.Background(), "UNRATE", "unemployment_rate")
	if empty.Status != StatusEmpty || empty.Table == nil || len(empty.Table) != 0 {
		t.Errorf("never-fetched series should be empty, got %s %v", empty.Status, empty.Table)
	}
}

func TestGetUpdated_CorruptStoreStartsOver(t *testing.T) {
	acc, mock := newTestAccumulator(t, map[string]model.Table{"GDP": {obs("2024-06-01", 1)}})
	if err := os.WriteFile(acc.Store.Path(), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	res := acc.GetUpdated(context.Background(), "GDP", "us_gdp")
	if mock.Calls[0].Start.String() != "2024-03-22" {
		t.Errorf("corrupt store should refetch the history window, start=%s", mock.Calls[0].Start)
	}
	if len(res.Table) != 1 {
		t.Errorf("unexpected table %v", res.Table)
	}
	if _, err := acc.Store.Load(); err != nil {
		t.Errorf("store should be repaired after accumulation: %v", err)
	}
}

func TestRefresh_UsesSeriesProvider(t *testing.T) {
	acc, fred := newTestAccumulator(t, nil)
	markets := collector.NewMockFetcher(map[string]model.Table{"SPX:IND": {obs("2024-06-28", 5460)}})
	acc.Providers["markets"] = markets

	results := acc.RefreshAll(context.Background(), []model.SeriesSpec{
		{Name: "us_gdp", Key: "GDP"},
		{Name: "sp500", Key: "SPX:IND", Provider: "markets"},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if fred.CallCount() != 1 || markets.CallCount() != 1 {
		t.Errorf("fred calls=%d markets calls=%d", fred.CallCount(), markets.CallCount())
	}
	if len(results[1].Table) != 1 {
		t.Errorf("sp500 table = %v", results[1].Table)
	}
}

func TestPlanRange(t *testing.T) {
	today := model.MustParseDate("2024-06-30")
	from, to, need := PlanRange(nil, today, 100)
	if !need || from.String() != "2024-03-22" || to != today {
		t.Errorf("empty: %s..%s need=%v", from, to, need)
	}
	from, _, need = PlanRange(model.Table{obs("2024-06-29", 1)}, today, 100)
	if !need || from != today {
		t.Errorf("yesterday: from=%s need=%v", from, need)
	}
	if _, _, need = PlanRange(model.Table{obs("2024-06-30", 1)}, today, 100); need {
		t.Error("table reaching today should need no fetch")
	}
}
