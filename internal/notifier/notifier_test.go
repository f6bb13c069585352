package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"EconDash/internal/accumulator"
	"EconDash/internal/model"

	"github.com/shopspring/decimal"
)

func obs(date, v string) model.Observation {
	return model.NewObservation(model.MustParseDate(date), decimal.RequireFromString(v))
}

func TestSend_PostsToChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "42", "")
	n.APIBase = srv.URL
	if err := n.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["chat_id"] != "42" || got["text"] != "hello" || got["parse_mode"] != "HTML" {
		t.Errorf("payload = %v", got)
	}
}

func TestSendWithRetry_GivesUpOnCancel(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "42", "")
	n.APIBase = srv.URL
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := n.SendWithRetry(ctx, "hello", 3)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected a single attempt before the backoff was cancelled, got %d", calls)
	}
}

func TestSendWithRetry_PermanentErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "42", "")
	n.APIBase = srv.URL
	err := n.SendWithRetry(context.Background(), "hello", 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 400 || !strings.Contains(apiErr.Description, "chat not found") {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}

func TestSendWithRetry_RecoversFromServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "42", "")
	n.APIBase = srv.URL
	if err := n.SendWithRetry(context.Background(), "hello", 2); err != nil {
		t.Fatalf("SendWithRetry: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestSend_TokenNotInTransportError(t *testing.T) {
	n := NewTelegramNotifier("secret-token", "42", "")
	n.APIBase = "http://127.0.0.1:1"
	err := n.Send("hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Errorf("token leaked: %v", err)
	}
}

func TestSplitMessage(t *testing.T) {
	line := strings.Repeat("x", 30) + "\n"
	text := strings.Repeat(line, 10)

	parts := splitMessage(text, 100)
	if len(parts) != 4 {
		t.Fatalf("expected 4 parts, got %d", len(parts))
	}
	for i, p := range parts {
		if len(p) > 100 {
			t.Errorf("part %d has %d bytes", i, len(p))
		}
	}
	if got := strings.Join(parts, "\n"); got != strings.TrimRight(text, "\n") {
		t.Error("parts do not reassemble the text")
	}

	if got := splitMessage("short", 100); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text = %v", got)
	}

	long := strings.Repeat("é", 60) // 120 bytes, no newline
	for _, p := range splitMessage(long, 51) {
		if !utf8.ValidString(p) {
			t.Errorf("split inside a rune: %q", p)
		}
	}
}

func TestStartPolling_AnswersConfiguredChatOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		polls   int32
		mu      sync.Mutex
		replies []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if atomic.AddInt32(&polls, 1) == 1 {
				w.Write([]byte(`{"ok":true,"result":[
					{"update_id":7,"message":{"text":"/list","chat":{"id":42}}},
					{"update_id":8,"message":{"text":"/refresh","chat":{"id":99}}},
					{"update_id":9,"message":{"text":"hello","chat":{"id":42}}}
				]}`))
				return
			}
			var params map[string]any
			json.NewDecoder(r.Body).Decode(&params)
			if params["offset"] != float64(10) {
				t.Errorf("offset = %v, want 10", params["offset"])
			}
			cancel()
			w.Write([]byte(`{"ok":true,"result":[]}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var params map[string]any
			json.NewDecoder(r.Body).Decode(&params)
			mu.Lock()
			replies = append(replies, params)
			mu.Unlock()
			w.Write([]byte(`{"ok":true,"result":{}}`))
		}
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "42", "")
	n.APIBase = srv.URL

	var handled []string
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(cmd string) string {
			handled = append(handled, cmd)
			return "reply to " + cmd
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop after cancel")
	}
	if len(handled) != 1 || handled[0] != "/list" {
		t.Errorf("handled = %v, want [/list]", handled)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(replies) != 1 || replies[0]["chat_id"] != "42" || replies[0]["text"] != "reply to /list" {
		t.Errorf("replies = %v", replies)
	}
}

func TestFormatDigest(t *testing.T) {
	results := []accumulator.Result{
		{Name: "us_gdp", Status: accumulator.StatusFresh, Fetched: 1,
			Table: model.Table{obs("2023-10-01", "27956.998"), obs("2024-01-01", "28269.174")}},
		{Name: "unemployment_rate", Status: accumulator.StatusStale, Err: errors.New("fred: transport: timeout"),
			Table: model.Table{obs("2024-05-01", "4.0")}},
		{Name: "financial_stress", Status: accumulator.StatusEmpty, Table: model.Table{}},
	}
	msg := FormatDigest(results, time.Date(2024, 6, 30, 8, 0, 0, 0, time.UTC))

	for _, want := range []string{
		"2024-06-30 08:00",
		"✅ <b>us_gdp</b>: fresh (+1 rows)",
		"latest 2024-01-01 = 28269.174 (+312.18)",
		"⚠️ <b>unemployment_rate</b>: stale",
		"fred: transport: timeout",
		"❌ <b>financial_stress</b>: empty",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("digest missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatSeries(t *testing.T) {
	tbl := model.Table{}
	for i, v := range []string{"1", "2", "3", "4", "5", "6", "11"} {
		tbl = append(tbl, obs(model.NewDate(2024, 1, i+1).String(), v))
	}

	plain := FormatSeries(model.SeriesSpec{Name: "unemployment_rate", Key: "UNRATE", Title: "U.S. Unemployment Rate"}, tbl)
	if strings.Contains(plain, "2024-01-02") || !strings.Contains(plain, "2024-01-03  3") {
		t.Errorf("expected the last 5 rows only:\n%s", plain)
	}
	if !strings.Contains(plain, "range 1 … 11 over 7 rows") {
		t.Errorf("missing range line:\n%s", plain)
	}

	pct := FormatSeries(model.SeriesSpec{Name: "financial_stress", Key: "STLFSI4", Title: "Overall Risk Index", Percent: true}, tbl)
	if !strings.Contains(pct, "2024-01-07  11  100.00%") || !strings.Contains(pct, "2024-01-06  6  50.00%") {
		t.Errorf("percent rows wrong:\n%s", pct)
	}

	empty := FormatSeries(model.SeriesSpec{Name: "us_gdp", Key: "GDP", Title: "U.S. GDP"}, model.Table{})
	if !strings.Contains(empty, "No data available") {
		t.Errorf("empty series message = %q", empty)
	}
}

func TestFormatIndices(t *testing.T) {
	quotes := []model.IndexQuote{
		{Symbol: "SPX:IND", Close: decimal.NewNullDecimal(decimal.RequireFromString("5460.48")),
			DailyPercentChange: decimal.NewNullDecimal(decimal.RequireFromString("-0.41"))},
		{Symbol: "INDU:IND", Close: decimal.NewNullDecimal(decimal.RequireFromString("39118.86"))},
		{Symbol: "UKX:IND"},
	}
	msg := FormatIndices(quotes, 2)
	if !strings.Contains(msg, "SPX:IND  5460.48 (-0.41%)") || !strings.Contains(msg, "INDU:IND  39118.86\n") {
		t.Errorf("unexpected indices message:\n%s", msg)
	}
	if strings.Contains(msg, "UKX") {
		t.Error("limit not applied")
	}
	if !strings.Contains(FormatIndices(nil, 50), "No data available") {
		t.Error("empty list should say no data")
	}
}

func TestFormatSeriesList(t *testing.T) {
	msg := FormatSeriesList([]model.SeriesSpec{{Name: "us_gdp", Key: "GDP", Title: "U.S. GDP"}})
	if !strings.Contains(msg, "• us_gdp: U.S. GDP [GDP]") || !strings.Contains(msg, "/series &lt;name&gt;") {
		t.Errorf("unexpected list:\n%s", msg)
	}
}
