package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Telegram sends digest messages via the Telegram bot API. The subscriber
// identity is the chat id.
type Telegram struct {
	client   *http.Client
	botToken string
	baseURL  string
}

// NewTelegram creates a Telegram transport.
func NewTelegram(botToken string) *Telegram {
	return &Telegram{
		client:   &http.Client{Timeout: 10 * time.Second},
		botToken: botToken,
		baseURL:  "https://api.telegram.org",
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Send posts a Markdown message with action buttons as an inline keyboard.
func (t *Telegram) Send(ctx context.Context, identity string, msg *Message) error {
	if t.botToken == "" {
		return fmt.Errorf("telegram transport misconfigured: empty bot token")
	}

	text := msg.Text
	var links []string
	if msg.AbsURL != "" {
		links = append(links, fmt.Sprintf("[abstract](%s)", msg.AbsURL))
	}
	if msg.PDFURL != "" {
		links = append(links, fmt.Sprintf("[pdf](%s)", msg.PDFURL))
	}
	if len(links) > 0 {
		text += "\n\n🔗 " + strings.Join(links, " | ")
	}

	payload := map[string]any{
		"chat_id":    identity,
		"text":       text,
		"parse_mode": "Markdown",
	}
	if len(msg.Actions) > 0 {
		var row []map[string]string
		for _, a := range msg.Actions {
			row = append(row, map[string]string{
				"text":          a.Label,
				"callback_data": a.Callback,
			})
		}
		payload["reply_markup"] = map[string]any{
			"inline_keyboard": []any{row},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
