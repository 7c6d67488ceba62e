package notifier

import (
	"context"
	"net/http"

	"taskhub-notify/internal/domain"
)

// WebhookNotifier forwards deliveries to a push or SMS gateway that accepts
// a JSON envelope and answers 2xx on acceptance.
type WebhookNotifier struct {
	name   string
	url    string
	apiKey string
	client *http.Client
}

func NewWebhookNotifier(name, url, apiKey string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &WebhookNotifier{
		name:   name,
		url:    url,
		apiKey: apiKey,
		client: client,
	}
}

type webhookEnvelope struct {
	Channel domain.Channel `json:"channel"`
	To      string         `json:"to"`
	Content string         `json:"content"`
}

func (w *WebhookNotifier) Notify(ctx context.Context, recipientToken string, ch domain.Channel, content string) error {
	var header http.Header
	if w.apiKey != "" {
		header = http.Header{}
		header.Set("Authorization", "Bearer "+w.apiKey)
	}
	return postJSON(ctx, w.client, w.name, w.url, header, webhookEnvelope{
		Channel: ch,
		To:      recipientToken,
		Content: content,
	}, nil)
}
