// Package notify delivers payment notifications outside the request path.
// Events are already persisted to the inbox table by the time they reach a
// Sender, so delivery failures are logged and dropped.
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

	"github.com/cenkalti/backoff/v4"

	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

// Sender delivers one event to an external channel.
type Sender interface {
	Send(ctx context.Context, event *entity.NotificationEvent) error
}

// LogSender writes events to the structured log. Used when no channel is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, e *entity.NotificationEvent) error {
	s.logger.Info("notification",
		"kind", e.Kind,
		"recipient_id", e.RecipientID,
		"recipient_role", e.RecipientRole,
		"request_id", e.RequestID,
		"title", e.Title,
	)
	return nil
}

// WebhookSender POSTs events as JSON, retrying transport errors and 5xx responses.
type WebhookSender struct {
	url        string
	httpClient *http.Client
	maxRetries uint64
	logger     *slog.Logger
}

func NewWebhookSender(url string, timeout time.Duration, maxRetries int, logger *slog.Logger) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &WebhookSender{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: uint64(maxRetries),
		logger:     logger,
	}
}

type webhookPayload struct {
	Type  string                    `json:"type"`
	Event *entity.NotificationEvent `json:"event"`
}

func (s *WebhookSender) Send(ctx context.Context, e *entity.NotificationEvent) error {
	data, err := json.Marshal(webhookPayload{Type: "payment_notification", Event: e})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Payments-Event", e.Kind)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.logger.Warn("webhook delivery failed", "attempt", attempt, "kind", e.Kind, "error", err)
			return fmt.Errorf("webhook request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			s.logger.Warn("webhook delivery failed", "attempt", attempt, "kind", e.Kind, "status", resp.StatusCode)
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 30 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, s.maxRetries), ctx))
}
