package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultAPIBase is the Telegram Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// MaxMessageLen is the Bot API limit for one message text.
const MaxMessageLen = 4096

// TelegramNotifier delivers refresh digests and command replies to one chat.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	APIBase  string
	Client   *http.Client
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		APIBase:  DefaultAPIBase,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// APIError is a failed Bot API call. Code is the HTTP status when the
// response carried no error_code.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram %s: status %d", e.Method, e.Code)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Temporary reports whether retrying the same call may succeed.
func (e *APIError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// call posts params as JSON to method and decodes the result into dest
// when dest is non-nil.
func (t *TelegramNotifier) call(ctx context.Context, client *http.Client, method string, params, dest any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, redactToken(err, t.BotToken))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil || !env.OK || resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, dest); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (t *TelegramNotifier) methodURL(method string) string {
	base := t.APIBase
	if base == "" {
		base = DefaultAPIBase
	}
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(base, "/"), t.BotToken, method)
}

// redactToken keeps the bot token out of logged transport errors, which
// include the request URL.
func redactToken(err error, token string) error {
	var ue *url.Error
	if token == "" || !errors.As(err, &ue) {
		return err
	}
	return fmt.Errorf("%s %q: %w", ue.Op, strings.ReplaceAll(ue.URL, token, "***"), ue.Err)
}

// Send sends text to the configured chat, split into several messages
// when it exceeds MaxMessageLen.
func (t *TelegramNotifier) Send(text string) error {
	return t.SendContext(context.Background(), text)
}

// SendContext is Send bounded by ctx.
func (t *TelegramNotifier) SendContext(ctx context.Context, text string) error {
	return t.sendTo(ctx, t.ChatID, text)
}

func (t *TelegramNotifier) sendTo(ctx context.Context, chatID, text string) error {
	for _, part := range splitMessage(text, MaxMessageLen) {
		params := map[string]any{
			"chat_id":                  chatID,
			"text":                     part,
			"parse_mode":               "HTML",
			"disable_web_page_preview": true,
		}
		if err := t.call(ctx, t.Client, "sendMessage", params, nil); err != nil {
			return err
		}
	}
	return nil
}

// SendWithRetry sends text, backing off exponentially on temporary
// failures. A 429 waits at least the retry_after the API asked for.
// Permanent failures such as a wrong chat id return at once.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.SendContext(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return err
		}
		if i == maxRetries {
			break
		}
		backoff := time.Duration(1<<uint(i)) * time.Second
		if apiErr != nil && apiErr.RetryAfter > backoff {
			backoff = apiErr.RetryAfter
		}
		log.Printf("[WARN] Telegram send failed (attempt %d/%d): %v, retrying in %v", i+1, maxRetries+1, err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}

// splitMessage cuts text into parts of at most limit bytes, preferring
// line boundaries so HTML tags opened on a line stay closed within a part.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			parts = append(parts, line[:cut])
			line = line[cut:]
		}
		if cur.Len()+len(line) > limit {
			flush()
		}
		cur.WriteString(line)
	}
	flush()
	return parts
}
