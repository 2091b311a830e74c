// Package push provides the webhook client of the push notification gateway.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aimd54/travelquest-rewards/internal/config"
	"github.com/aimd54/travelquest-rewards/pkg/logger"
)

// Client posts push messages to the gateway webhook.
type Client struct {
	webhookURL string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new push client.
func NewClient(cfg *config.PushConfig, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		webhookURL: cfg.WebhookURL,
		enabled:    cfg.Enabled,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Message is an Expo-style push payload addressed to a user.
type Message struct {
	UserID uint                   `json:"user_id"`
	Title  string                 `json:"title"`
	Body   string                 `json:"body"`
	Sound  string                 `json:"sound,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// StatusError is returned when the gateway answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push gateway returned status %d", e.StatusCode)
}

// IsPermanent reports whether retrying err cannot succeed (client errors except 429).
func IsPermanent(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
}

// Enabled reports whether messages are actually delivered.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Send posts a message to the gateway.
func (c *Client) Send(ctx context.Context, msg *Message) error {
	if !c.enabled {
		c.log.Debug().Uint("user_id", msg.UserID).Msg("Push is disabled, skipping message")
		return nil
	}

	if msg.Sound == "" {
		msg.Sound = "default"
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}

	c.log.Debug().
		Uint("user_id", msg.UserID).
		Str("title", msg.Title).
		Msg("Sent push message")

	return nil
}
