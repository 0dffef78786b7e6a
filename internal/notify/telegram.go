package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramSender delivers alerts through the Telegram Bot API. Messages are
// sent in HTML mode with the body escaped, since market questions and token
// ids routinely contain characters that break Markdown parsing.
type TelegramSender struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
}

// NewTelegramSender creates a sender for the given bot token and chat id.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:   token,
		chatID:  chatID,
		apiBase: telegramAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// telegramResponse is the envelope every Bot API call answers with.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts one message to the configured chat: bold title, escaped body.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	form := url.Values{
		"chat_id":    {t.chatID},
		"parse_mode": {"HTML"},
		"text":       {fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(title), html.EscapeString(message))},
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var tr telegramResponse
	if err := json.Unmarshal(body, &tr); err == nil && !tr.OK && tr.Description != "" {
		return fmt.Errorf("telegram: api error: %s", tr.Description)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, body)
	}
	return nil
}

// Name identifies the sender in dispatch errors and logs.
func (t *TelegramSender) Name() string {
	return "telegram"
}
