package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const userAgent = "EconDash/1.0"

// newHTTPClient returns a client with the default timeout and an optional proxy.
func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

// getJSON performs a GET and decodes the JSON body into dest. Failures are
// returned as *FetchError tagged with provider.
func getJSON(ctx context.Context, client *http.Client, provider, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{Provider: provider, Kind: KindTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return &FetchError{Provider: provider, Kind: KindTransport, Err: redact(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Provider: provider, Kind: KindTransport, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{Provider: provider, Kind: KindTransport, Err: fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(body, 200))}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &FetchError{Provider: provider, Kind: KindDecode, Err: err}
	}
	return nil
}

// redact drops the request URL from transport errors so API keys do not end up in logs.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
