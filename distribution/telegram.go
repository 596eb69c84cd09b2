package distribution

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"shortsbot/common"
	"shortsbot/config"
)

const telegramAPI = "https://api.telegram.org"

// Telegram sends completion messages through the Bot API
type Telegram struct {
	BaseURL  string
	botToken string
	chatID   string
	client   *http.Client
	retry    common.RetryPolicy
}

// NewTelegram creates a notifier; maxAttempts below 1 means one try
func NewTelegram(botToken, chatID string, maxAttempts int) *Telegram {
	return &Telegram{
		BaseURL:  telegramAPI,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: config.NotifyTimeout},
		retry: common.RetryPolicy{
			MaxAttempts: maxAttempts,
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
			Retryable:   common.RetryableHTTP,
		},
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts message as Markdown; false means Telegram is unconfigured or declined it
func (t *Telegram) Send(ctx context.Context, message string) (bool, error) {
	if t.botToken == "" || t.chatID == "" {
		log.Println("ℹ️  Telegram not configured, skipping notification")
		return false, nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.botToken)
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}
	resp, err := common.Retry(ctx, t.retry, func(ctx context.Context) (telegramResponse, error) {
		var r telegramResponse
		err := common.DoJSON(ctx, t.client, http.MethodPost, url, payload, &r)
		return r, err
	})
	if err != nil {
		return false, fmt.Errorf("telegram notification failed: %w", err)
	}
	if !resp.OK {
		log.Printf("⚠️  Telegram API error: %s", resp.Description)
		return false, nil
	}
	log.Println("📨 Telegram notification sent")
	return true, nil
}
