package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	// URL receives a JSON POST of every Event.
	URL string

	// Timeout for webhook requests. Defaults to 10s.
	Timeout time.Duration

	// Headers to include in webhook requests (e.g., for authentication).
	Headers map[string]string
}

// Webhook posts events to an HTTP endpoint, e.g. a chat integration that
// announces runner launches.
type Webhook struct {
	config WebhookConfig
	client *http.Client
	logger *slog.Logger
}

// NewWebhook creates a new webhook notifier.
func NewWebhook(config WebhookConfig, logger *slog.Logger) (*Webhook, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

// Notify implements Notifier.
func (w *Webhook) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}

	w.logger.Debug("sending webhook",
		slog.String("url", w.config.URL),
		slog.String("event", event.Type),
		slog.String("run_id", event.RunID),
	)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

var _ Notifier = (*Webhook)(nil)
