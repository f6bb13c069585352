package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"EconDash/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultMarketsBaseURL is the Trading Economics API root.
const DefaultMarketsBaseURL = "https://api.tradingeconomics.com"

// MarketsClient talks to the global markets API. It also implements
// SeriesFetcher by exposing the daily close of an index as the series value.
type MarketsClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewMarketsClient creates a markets client with optional proxy support.
func NewMarketsClient(baseURL, apiKey, proxyURL string) *MarketsClient {
	if baseURL == "" {
		baseURL = DefaultMarketsBaseURL
	}
	return &MarketsClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func (c *MarketsClient) Name() string { return "markets" }

// record is one loosely typed JSON object. Field lookups ignore case and
// underscores, so "daily_change" and "DailyChange" resolve to the same value.
type record map[string]json.RawMessage

func normalizeKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(k, "_", ""))
}

func (r record) raw(field string) (json.RawMessage, bool) {
	want := normalizeKey(field)
	for k, v := range r {
		if normalizeKey(k) == want {
			return v, true
		}
	}
	return nil, false
}

func (r record) str(field string) string {
	v, ok := r.raw(field)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return strings.Trim(string(v), `"`)
	}
	return s
}

// num accepts JSON numbers, numeric strings and null.
func (r record) num(field string) decimal.NullDecimal {
	v, ok := r.raw(field)
	if !ok {
		return decimal.NullDecimal{}
	}
	var n decimal.NullDecimal
	if err := n.UnmarshalJSON(v); err != nil {
		return decimal.NullDecimal{}
	}
	return n
}

var marketDateLayouts = []string{
	"02/01/2006",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999",
	time.RFC3339,
	model.DateFormat,
}

func parseMarketTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range marketDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized market date %q", s)
}

func (c *MarketsClient) endpoint(path string, extra url.Values) string {
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	q.Set("c", c.APIKey)
	q.Set("f", "json")
	return c.BaseURL + "/" + strings.TrimLeft(path, "/") + "?" + q.Encode()
}

// Indices returns the current global stock indices list.
func (c *MarketsClient) Indices(ctx context.Context) ([]model.IndexQuote, error) {
	if c.APIKey == "" {
		return []model.IndexQuote{}, &FetchError{Provider: c.Name(), Kind: KindCredentials, Err: errMissingAPIKey}
	}
	var records []record
	if err := getJSON(ctx, c.Client, c.Name(), c.endpoint("markets/indices", nil), &records); err != nil {
		return []model.IndexQuote{}, err
	}

	quotes := make([]model.IndexQuote, 0, len(records))
	for _, r := range records {
		q := model.IndexQuote{
			Symbol:             r.str("symbol"),
			Name:               r.str("name"),
			Country:            r.str("country"),
			Close:              r.num("close"),
			DailyChange:        r.num("daily_change"),
			DailyPercentChange: r.num("daily_percentual_change"),
		}
		if ts := r.str("last_update"); ts != "" {
			if t, err := parseMarketTime(ts); err == nil {
				q.LastUpdate = t
			}
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// History returns daily bars of symbol between start and end inclusive.
func (c *MarketsClient) History(ctx context.Context, symbol string, start, end model.Date) ([]model.IndexBar, error) {
	if c.APIKey == "" {
		return []model.IndexBar{}, &FetchError{Provider: c.Name(), Kind: KindCredentials, Err: errMissingAPIKey}
	}
	params := url.Values{}
	params.Set("d1", start.String())
	params.Set("d2", end.String())
	path := "historical/markets/index/" + url.PathEscape(symbol)

	var records []record
	if err := getJSON(ctx, c.Client, c.Name(), c.endpoint(path, params), &records); err != nil {
		return []model.IndexBar{}, err
	}

	bars := make([]model.IndexBar, 0, len(records))
	dropped := 0
	for _, r := range records {
		t, err := parseMarketTime(r.str("date"))
		if err != nil {
			dropped++
			continue
		}
		sym := r.str("symbol")
		if sym == "" {
			sym = symbol
		}
		bars = append(bars, model.IndexBar{
			Symbol: sym,
			Date:   model.DateOf(t),
			Open:   r.num("open"),
			High:   r.num("high"),
			Low:    r.num("low"),
			Close:  r.num("close"),
		})
	}
	if dropped > 0 {
		log.Printf("[WARN] markets %s: dropped %d bars with unparseable dates", symbol, dropped)
	}
	return bars, nil
}

// FetchSeries exposes the close of symbol as a series table.
func (c *MarketsClient) FetchSeries(ctx context.Context, symbol string, start, end model.Date) (model.Table, error) {
	bars, err := c.History(ctx, symbol, start, end)
	if err != nil {
		return model.Table{}, err
	}
	table := make(model.Table, 0, len(bars))
	for _, b := range bars {
		table = append(table, model.Observation{Date: b.Date, Value: b.Close})
	}
	return table, nil
}
