package notifier

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CommandHandler answers one bot command; an empty reply sends nothing.
type CommandHandler func(command string) string

// pollTimeout is the long-poll wait asked of getUpdates.
const pollTimeout = 30

const pollBackoff = 5 * time.Second

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling long-polls getUpdates and answers commands such as /series
// and /refresh sent from the configured chat. Messages from other chats are
// ignored so strangers cannot trigger refreshes. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	client := &http.Client{Timeout: (pollTimeout + 5) * time.Second, Transport: t.Client.Transport}
	offset := 0
	for {
		updates, err := t.getUpdates(ctx, client, offset)
		if ctx.Err() != nil {
			log.Println("[INFO] Telegram polling stopped")
			return
		}
		if err != nil {
			wait := pollBackoff
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > wait {
				wait = apiErr.RetryAfter
			}
			log.Printf("[WARN] polling failed, retrying in %v: %v", wait, err)
			sleepCtx(ctx, wait)
			continue
		}
		offset = t.dispatch(ctx, updates, offset, handler)
	}
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, client *http.Client, offset int) ([]telegramUpdate, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         pollTimeout,
		"allowed_updates": []string{"message"},
	}
	var updates []telegramUpdate
	err := t.call(ctx, client, "getUpdates", params, &updates)
	return updates, err
}

// dispatch runs handler for every command in updates and returns the next offset.
func (t *TelegramNotifier) dispatch(ctx context.Context, updates []telegramUpdate, offset int, handler CommandHandler) int {
	for _, u := range updates {
		if u.UpdateID >= offset {
			offset = u.UpdateID + 1
		}
		if u.Message == nil {
			continue
		}
		text := strings.TrimSpace(u.Message.Text)
		if !strings.HasPrefix(text, "/") {
			continue
		}
		chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
		if chatID != t.ChatID {
			log.Printf("[WARN] ignoring command from chat %s", chatID)
			continue
		}
		log.Printf("[INFO] received command: %s", text)
		reply := handler(text)
		if reply == "" {
			continue
		}
		if err := t.sendTo(ctx, chatID, reply); err != nil {
			log.Printf("[ERROR] reply to %s: %v", text, err)
		}
	}
	return offset
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
