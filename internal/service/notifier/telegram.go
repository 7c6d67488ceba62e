package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"taskhub-notify/internal/domain"
)

type TelegramNotifier struct {
	baseURL  string
	botToken string
	client   *http.Client
}

func NewTelegramNotifier(baseURL, botToken string, client *http.Client) *TelegramNotifier {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &TelegramNotifier{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		client:   client,
	}
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramNotifier) Notify(ctx context.Context, chatID string, _ domain.Channel, content string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	var resp telegramResponse
	err := postJSON(ctx, t.client, "telegram", url, nil, telegramMessage{ChatID: chatID, Text: content}, &resp)
	if err != nil {
		return err
	}
	if !resp.OK {
		if resp.Description == "" {
			return errors.New("telegram: request not accepted")
		}
		return fmt.Errorf("telegram: %s", resp.Description)
	}
	return nil
}
