// File: internal/infra/adapters/notify/webhook_dispatcher.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"subscription-billing/internal/domain/ports/adapter"
)

var _ adapter.NotificationDispatcher = (*WebhookDispatcher)(nil)

// WebhookDispatcher posts expiry warnings to a configured webhook. The
// receiving side (mailer, chat bridge, ...) owns delivery to the user.
type WebhookDispatcher struct {
	url    string
	client *http.Client
}

func NewWebhookDispatcher(url string, timeout time.Duration) (*WebhookDispatcher, error) {
	if url == "" {
		return nil, errors.New("webhook url empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookDispatcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (d *WebhookDispatcher) Send(ctx context.Context, n adapter.Notification) error {
	payload := map[string]any{
		"template":        n.Template,
		"subscription_id": n.SubscriptionID,
		"user_email":      n.UserEmail,
		"service":         n.Service,
		"end_date":        n.EndDate.UTC().Format(time.RFC3339),
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
