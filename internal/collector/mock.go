package collector

import (
	"context"
	"sync"

	"EconDash/internal/model"
)

// FetchCall records the arguments of one MockFetcher.FetchSeries call.
type FetchCall struct {
	Key        string
	Start, End model.Date
}

// MockFetcher returns controllable fixed data for development and testing.
// Rows are filtered to the requested range, as a real provider would.
type MockFetcher struct {
	mu    sync.Mutex
	Data  map[string]model.Table
	Err   error
	Calls []FetchCall
}

func NewMockFetcher(data map[string]model.Table) *MockFetcher {
	if data == nil {
		data = make(map[string]model.Table)
	}
	return &MockFetcher{Data: data}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchSeries(_ context.Context, key string, start, end model.Date) (model.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, FetchCall{Key: key, Start: start, End: end})
	if m.Err != nil {
		return model.Table{}, m.Err
	}
	out := model.Table{}
	for _, o := range m.Data[key] {
		if o.Date.Before(start) || o.Date.After(end) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// CallCount returns how many fetches were issued.
func (m *MockFetcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
