package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eencloud/goeen/log"
)

// WebhookPayload is the body POSTed to configured webhook endpoints.
type WebhookPayload struct {
	Event        string                 `json:"event"`
	FormType     string                 `json:"form_type"`
	SubmissionID string                 `json:"submission_id,omitempty"`
	Step         int                    `json:"step,omitempty"`
	Timestamp    string                 `json:"timestamp"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// WebhookClient delivers event payloads with retry and a circuit breaker so
// a dead endpoint cannot slow the signup path down.
type WebhookClient struct {
	httpClient *http.Client
	maxRetries int
	health     *HealthMonitor
	logger     *log.Logger
}

func NewWebhookClient(timeout time.Duration, maxRetries int, logger *log.Logger) *WebhookClient {
	return &WebhookClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		health:     NewHealthMonitor(5, 30*time.Second),
		logger:     logger,
	}
}

// Send delivers the payload to the webhook URL with retry logic.
func (c *WebhookClient) Send(webhookURL string, payload WebhookPayload) error {
	if !c.health.CanProceed() {
		c.logger.Warningf("Webhook circuit open, dropping %s event for %s", payload.Event, webhookURL)
		return fmt.Errorf("webhook endpoint unhealthy, event dropped")
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoffDelay(attempt))
			c.logger.Debugf("Webhook retry attempt %d for event %s", attempt, payload.Event)
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
		req, err := http.NewRequestWithContext(ctx, "POST", webhookURL, bytes.NewBuffer(payloadBytes))
		if err != nil {
			cancel()
			lastErr = fmt.Errorf("failed to create webhook request: %w", err)
			continue
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("webhook request failed: %w", err)
			continue
		}

		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.health.RecordSuccess()
			c.logger.Debugf("Webhook delivered: %s (%s)", payload.Event, payload.SubmissionID)
			return nil
		}

		lastErr = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	// All retries failed
	c.health.RecordFailure()
	c.logger.Errorf("Webhook delivery failed after %d attempts: %s (last error: %v)",
		c.maxRetries+1, payload.Event, lastErr)

	return lastErr
}

// backoffDelay doubles per retry: 1s, 2s, 4s, ...
func backoffDelay(attempt int) time.Duration {
	return time.Second << (attempt - 1)
}

// HealthStats exposes breaker counters for the metrics endpoint.
func (c *WebhookClient) HealthStats() map[string]interface{} {
	return c.health.GetStats()
}
