package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"taskhub-notify/internal/domain"
)

type SlackNotifier struct {
	baseURL  string
	botToken string
	client   *http.Client
}

func NewSlackNotifier(baseURL, botToken string, client *http.Client) *SlackNotifier {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &SlackNotifier{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		client:   client,
	}
}

type slackMessage struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Notify posts a direct message; Slack accepts a user id as the channel.
// Slack answers 200 with ok=false for most failures.
func (s *SlackNotifier) Notify(ctx context.Context, slackUserID string, _ domain.Channel, content string) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.botToken)

	var resp slackResponse
	err := postJSON(ctx, s.client, "slack", s.baseURL+"/api/chat.postMessage", header,
		slackMessage{Channel: slackUserID, Text: content}, &resp)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("slack: %s", resp.Error)
	}
	return nil
}
