package collector

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"

	"EconDash/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultFREDBaseURL is the FRED API root.
const DefaultFREDBaseURL = "https://api.stlouisfed.org/fred"

// FREDFetcher implements SeriesFetcher using the FRED series/observations endpoint.
type FREDFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewFREDFetcher creates a FRED fetcher with optional proxy support.
func NewFREDFetcher(baseURL, apiKey, proxyURL string) *FREDFetcher {
	if baseURL == "" {
		baseURL = DefaultFREDBaseURL
	}
	return &FREDFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *FREDFetcher) Name() string { return "fred" }

// fredObservations is the response shape of series/observations.
type fredObservations struct {
	Observations *[]struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// FetchSeries downloads the observations of seriesID between start and end inclusive.
func (f *FREDFetcher) FetchSeries(ctx context.Context, seriesID string, start, end model.Date) (model.Table, error) {
	if f.APIKey == "" {
		return model.Table{}, &FetchError{Provider: f.Name(), Kind: KindCredentials, Err: errMissingAPIKey}
	}

	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", f.APIKey)
	q.Set("file_type", "json")
	q.Set("observation_start", start.String())
	q.Set("observation_end", end.String())
	endpoint := f.BaseURL + "/series/observations?" + q.Encode()

	var resp fredObservations
	if err := getJSON(ctx, f.Client, f.Name(), endpoint, &resp); err != nil {
		return model.Table{}, err
	}
	if resp.Observations == nil {
		return model.Table{}, &FetchError{Provider: f.Name(), Kind: KindDecode, Err: errNoObservations}
	}

	table := make(model.Table, 0, len(*resp.Observations))
	dropped := 0
	for _, o := range *resp.Observations {
		d, err := model.ParseDate(o.Date)
		if err != nil {
			dropped++
			continue
		}
		table = append(table, model.Observation{Date: d, Value: parseValue(o.Value)})
	}
	if dropped > 0 {
		log.Printf("[WARN] fred %s: dropped %d observations with unparseable dates", seriesID, dropped)
	}
	return table, nil
}

// parseValue turns a provider value string into a nullable decimal. FRED
// uses "." for missing observations; anything unparseable is null.
func parseValue(s string) decimal.NullDecimal {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}
