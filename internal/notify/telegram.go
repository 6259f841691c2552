package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTelegramAPI = "https://api.telegram.org"

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// TelegramSender posts messages through the Telegram Bot API.
type TelegramSender struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
}

// NewTelegramSender builds a sender for token and chatID with a 10s HTTP
// timeout.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:   token,
		chatID:  chatID,
		apiBase: defaultTelegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIBase points the sender at another Bot API host.
func (t *TelegramSender) WithAPIBase(base string) *TelegramSender {
	t.apiBase = strings.TrimRight(base, "/")
	return t
}

// Send posts text to the configured chat using sendMessage with HTML parse
// mode. text is plain; it is escaped before sending.
func (t *TelegramSender) Send(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)

	body, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       html.EscapeString(text),
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (t *TelegramSender) Name() string {
	return "telegram"
}

// LogSender writes messages to the log instead of a chat. It stands in when
// no bot token is configured.
type LogSender struct {
	Logf func(format string, args ...any)
}

func (l LogSender) Send(_ context.Context, text string) error {
	l.Logf("[notify] %s", text)
	return nil
}

func (l LogSender) Name() string {
	return "log"
}
