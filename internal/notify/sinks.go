package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TextSink delivers one text message. Implementations own their own
// retries and timeouts.
type TextSink interface {
	Name() string
	SendText(text string) error
}

const sendRetries = 3

// Discord posts messages to a webhook URL.
type Discord struct {
	WebhookURL string
	Client     *http.Client
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{WebhookURL: webhookURL, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (d *Discord) Name() string { return "discord" }

// SendText posts the message with up to 3 attempts.
func (d *Discord) SendText(text string) error {
	if d.WebhookURL == "" {
		return fmt.Errorf("discord webhook url not configured")
	}
	body, _ := json.Marshal(map[string]string{"content": text})
	return postJSON(d.Client, d.WebhookURL, body)
}

// Telegram pushes messages to a chat via the bot API.
type Telegram struct {
	BotToken string
	ChatID   string
	Client   *http.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{BotToken: botToken, ChatID: chatID, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (t *Telegram) Name() string { return "telegram" }

// SendText sends the message with up to 3 attempts.
func (t *Telegram) SendText(text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("telegram not configured")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.BotToken)
	body, _ := json.Marshal(map[string]any{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	return postJSON(t.Client, url, body)
}

func postJSON(client *http.Client, url string, body []byte) error {
	var lastErr error
	for i := 0; i < sendRetries; i++ {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("status=%d", resp.StatusCode)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return lastErr
}
