// File: internal/notification/webhook.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// WebhookSender posts alerts as JSON to a configured URL
type WebhookSender struct {
	url        string
	attempts   int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *logrus.Entry
	httpClient *http.Client
}

// WebhookPayload defines the webhook payload structure
type WebhookPayload struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Alert     *Alert    `json:"alert"`
	Version   string    `json:"version"`
}

// NewWebhookSender creates a new webhook sender
func NewWebhookSender(config *NotificationManagerConfig) *WebhookSender {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	attempts := config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	return &WebhookSender{
		url:       config.WebhookURL,
		attempts:  attempts,
		baseDelay: config.RetryDelay,
		maxDelay:  30 * time.Second,
		logger:    utils.ComponentLogger("webhook_sender"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Name returns "webhook"
func (ws *WebhookSender) Name() string { return "webhook" }

// Notify posts the alert, retrying non-2xx responses and transport errors
// with exponential backoff.
func (ws *WebhookSender) Notify(ctx context.Context, alert *Alert) error {
	body, err := json.Marshal(&WebhookPayload{
		Event:     alert.Type,
		Timestamp: time.Now().UTC(),
		Source:    "ayutrace",
		Alert:     alert,
		Version:   "1.0",
	})
	if err != nil {
		return utils.WrapAppError(utils.ErrCodeInternal, "Failed to marshal webhook payload", err)
	}

	var lastErr error
	for attempt := 1; attempt <= ws.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(ws.retryDelay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		start := time.Now()
		status, err := ws.send(ctx, body)
		ws.logger.WithFields(logrus.Fields{
			"url":           ws.url,
			"attempt":       attempt,
			"status_code":   status,
			"response_time": time.Since(start),
		}).Debug("Webhook attempt finished")

		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < ws.attempts {
			ws.logger.WithError(err).WithField("attempt", attempt).Warn("Webhook attempt failed, retrying")
		}
	}
	return lastErr
}

func (ws *WebhookSender) send(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(body))
	if err != nil {
		return 0, utils.WrapAppError(utils.ErrCodeInternal, "Failed to create webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "AyuTrace/1.0")
	req.Header.Set("X-Request-ID", utils.GenerateID())

	resp, err := ws.httpClient.Do(req)
	if err != nil {
		return 0, utils.WrapAppError(utils.ErrCodeInternal, "Failed to send webhook", err).WithRetryable(true)
	}
	defer resp.Body.Close()

	// Limited read so a chatty endpoint cannot exhaust memory
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, utils.NewAppError(utils.ErrCodeInternal,
			"Webhook returned non-success status",
			fmt.Sprintf("status: %d, body: %s", resp.StatusCode, string(snippet)))
	}
	return resp.StatusCode, nil
}

// retryDelay is base_delay * 2^(attempt-2), capped at maxDelay
func (ws *WebhookSender) retryDelay(attempt int) time.Duration {
	delay := ws.baseDelay << uint(attempt-2)
	if delay > ws.maxDelay || delay < 0 {
		delay = ws.maxDelay
	}
	return delay
}
