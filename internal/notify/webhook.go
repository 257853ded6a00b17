package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"telemetry/internal/config"
	"telemetry/internal/domain"
)

// WebhookPublisher posts notification JSON to configured HTTP endpoint.
type WebhookPublisher struct {
	cfg    config.WebhookNotifier
	client *http.Client
}

// NewWebhookPublisher creates HTTP channel.
// Params: webhook config.
// Returns: initialized publisher.
func NewWebhookPublisher(cfg config.WebhookNotifier) *WebhookPublisher {
	return &WebhookPublisher{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

// Name returns channel name.
func (p *WebhookPublisher) Name() string {
	return "webhook"
}

// Publish delivers notification as JSON body; 4xx responses other than 429 are permanent failures.
func (p *WebhookPublisher) Publish(ctx context.Context, notification domain.Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return markPermanent(fmt.Errorf("encode webhook payload: %w", err))
	}
	method := strings.ToUpper(strings.TrimSpace(p.cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return markPermanent(fmt.Errorf("build webhook request: %w", err))
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range p.cfg.Headers {
		request.Header.Set(key, value)
	}

	response, err := p.client.Do(request)
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	statusErr := unexpectedHTTPStatusError("webhook", response)
	if response.StatusCode >= 400 && response.StatusCode < 500 && response.StatusCode != http.StatusTooManyRequests {
		return markPermanent(statusErr)
	}
	return statusErr
}

// Close releases idle connections.
func (p *WebhookPublisher) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// unexpectedHTTPStatusError formats non-2xx HTTP response with optional body.
// Params: sender prefix label and HTTP response.
// Returns: status-only or status+body error.
func unexpectedHTTPStatusError(prefix string, response *http.Response) error {
	rawBody, readErr := io.ReadAll(io.LimitReader(response.Body, 4<<10))
	if readErr != nil {
		return fmt.Errorf("%s status=%d (read body error: %w)", prefix, response.StatusCode, readErr)
	}
	trimmedBody := strings.TrimSpace(string(rawBody))
	if trimmedBody == "" {
		return fmt.Errorf("%s status=%d", prefix, response.StatusCode)
	}
	return fmt.Errorf("%s status=%d body=%s", prefix, response.StatusCode, trimmedBody)
}
