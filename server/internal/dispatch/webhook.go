package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Slack posts a formatted text message to a Slack incoming-webhook URL.
type Slack struct {
	client *http.Client
}

func NewSlack() *Slack {
	return &Slack{client: &http.Client{Timeout: 10 * time.Second}}
}

func (d *Slack) Type() string { return "slack" }

func (d *Slack) Send(ctx context.Context, address string, n *Notification) error {
	verb := "DOWN"
	if n.State == StateResolved {
		verb = "UP"
	}
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s %s (%s): %s",
			severityLabel(n.Severity), n.Sysname, verb, n.EventType, n.Message),
	})
	return post(ctx, d.client, address, body)
}

// Webhook posts the raw notification JSON to any HTTP endpoint.
type Webhook struct {
	client *http.Client
}

func NewWebhook() *Webhook {
	return &Webhook{client: &http.Client{Timeout: 10 * time.Second}}
}

func (d *Webhook) Type() string { return "http" }

func (d *Webhook) Send(ctx context.Context, address string, n *Notification) error {
	body, err := json.Marshal(map[string]interface{}{"alert": n})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return post(ctx, d.client, address, body)
}

func post(ctx context.Context, client *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
