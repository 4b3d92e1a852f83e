package alert

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Telegram is a one-shot text-message sink. Sends are best-effort:
// failures are logged and swallowed so an alert outage never takes
// down a trade.
type Telegram struct {
	chatID  string
	token   string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// Config holds Telegram alerter configuration.
type Config struct {
	ChatID string
	Token  string
	// BaseURL overrides the Telegram API host, for tests.
	BaseURL string
	Logger  *zap.Logger
}

// New creates a Telegram alerter.
func New(cfg Config) *Telegram {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &Telegram{
		chatID:  cfg.ChatID,
		token:   cfg.Token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  cfg.Logger,
	}
}

// Send posts one text message. Errors are logged, never returned.
func (t *Telegram) Send(ctx context.Context, text string) {
	if t.token == "" {
		return
	}

	params := url.Values{}
	params.Set("chat_id", t.chatID)
	params.Set("text", text)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		t.logger.Warn("alert-build-request-failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("alert-send-failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("alert-rejected", zap.Int("status", resp.StatusCode))
		return
	}

	t.logger.Debug("alert-sent", zap.Int("chars", len(text)))
}
