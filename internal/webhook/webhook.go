// Package webhook delivers short text notifications to a configured HTTP
// endpoint, the same shape Slack- and Discord-style incoming webhooks
// accept: a JSON body with a single "text" field.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single notification delivery.
const DefaultTimeout = 10 * time.Second

// Client posts regime-transition and critical-alert notifications to one
// configured webhook URL.
type Client struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
}

// New builds a webhook client. A zero-value url disables delivery; Notify
// becomes a no-op rather than erroring, so callers don't need to branch on
// whether the feature is enabled.
func New(url string, log zerolog.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        log.With().Str("component", "webhook_client").Logger(),
	}
}

type payload struct {
	Text string `json:"text"`
}

// Notify posts message to the configured webhook URL. A no-op when no URL
// is configured.
func (c *Client) Notify(ctx context.Context, message string) error {
	if c.url == "" {
		return nil
	}

	body, err := json.Marshal(payload{Text: message})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}

	c.log.Debug().Str("url", c.url).Msg("webhook notification delivered")
	return nil
}
