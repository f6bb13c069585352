package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"EconDash/internal/model"
)

func TestFREDFetcher_ParsesObservations(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/series/observations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"observations":[
			{"date":"2024-01-01","value":"28269.174"},
			{"date":"2023-10-01","value":"27956.998"},
			{"date":"2024-04-01","value":"."},
			{"date":"bogus","value":"1"}
		]}`))
	}))
	defer srv.Close()

	f := NewFREDFetcher(srv.URL, "secret", "")
	start, end := model.MustParseDate("2023-09-01"), model.MustParseDate("2024-06-01")
	table, err := f.FetchSeries(context.Background(), "GDP", start, end)
	if err != nil {
		t.Fatalf("FetchSeries: %v", err)
	}

	want := map[string]string{
		"series_id":         "GDP",
		"api_key":           "secret",
		"file_type":         "json",
		"observation_start": "2023-09-01",
		"observation_end":   "2024-06-01",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}

	if len(table) != 3 {
		t.Fatalf("expected 3 rows (bad date dropped), got %d", len(table))
	}
	// order as received
	if table[0].Date.String() != "2024-01-01" || table[1].Date.String() != "2023-10-01" {
		t.Errorf("rows reordered: %v, %v", table[0].Date, table[1].Date)
	}
	if table[0].Value.Decimal.String() != "28269.174" {
		t.Errorf("value = %s", table[0].Value.Decimal)
	}
	if table[2].Value.Valid {
		t.Error("expected '.' to parse as null")
	}
}

func TestFREDFetcher_FailSoft(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    ErrorKind
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}, KindTransport},
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error_message":"Bad Request. The value for variable api_key is not registered."}`, http.StatusBadRequest)
		}, KindTransport},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>maintenance</html>"))
		}, KindDecode},
		{"wrong shape", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"observations":"nope"}`))
		}, KindDecode},
		{"observations missing", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"realtime_start":"2024-06-30","count":0}`))
		}, KindDecode},
		{"observations null", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"observations":null}`))
		}, KindDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			f := NewFREDFetcher(srv.URL, "secret", "")
			table, err := f.FetchSeries(context.Background(), "UNRATE", model.MustParseDate("2024-01-01"), model.MustParseDate("2024-02-01"))
			if err == nil {
				t.Fatal("expected error")
			}
			if table == nil || len(table) != 0 {
				t.Errorf("expected empty non-nil table, got %v", table)
			}
			if KindOf(err) != tt.want {
				t.Errorf("kind = %q, want %q (%v)", KindOf(err), tt.want, err)
			}
		})
	}
}

func TestFREDFetcher_MissingKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	f := NewFREDFetcher(srv.URL, "", "")
	table, err := f.FetchSeries(context.Background(), "GDP", model.MustParseDate("2024-01-01"), model.MustParseDate("2024-02-01"))
	if KindOf(err) != KindCredentials {
		t.Errorf("kind = %q, want credentials", KindOf(err))
	}
	if len(table) != 0 {
		t.Errorf("expected empty table, got %d rows", len(table))
	}
	if called {
		t.Error("no request should be issued without an api key")
	}
}

func TestFREDFetcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	f := NewFREDFetcher(srv.URL, "secret", "")
	f.Client.Timeout = 20 * time.Millisecond
	_, err := f.FetchSeries(context.Background(), "GDP", model.MustParseDate("2024-01-01"), model.MustParseDate("2024-02-01"))
	if KindOf(err) != KindTransport {
		t.Errorf("kind = %q, want transport (%v)", KindOf(err), err)
	}
}
