package external

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"leadloop/internal/types"
)

// WebhookClient implements WebhookCaller for workflow webhook nodes.
// Tenant-configured URLs are untrusted, so delivery uses a short timeout and
// conservative retry policy through a dedicated circuit breaker.
type WebhookClient struct {
	base   *BaseClient
	logger *slog.Logger
}

// NewWebhookClient creates a WebhookClient.
func NewWebhookClient(httpClient *http.Client, logger *slog.Logger) *WebhookClient {
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"tenant-webhooks",
		RetryPolicy{
			MaxRetries: 1,
			MinWait:    500 * time.Millisecond,
			MaxWait:    2 * time.Second,
		},
		"LeadLoop-Webhook/1.0",
		WithSleepFunc(time.Sleep),
	)

	return &WebhookClient{base: base, logger: logger}
}

// NewWebhookClientWithBase creates a WebhookClient with a pre-configured
// BaseClient, for tests.
func NewWebhookClientWithBase(base *BaseClient, logger *slog.Logger) *WebhookClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookClient{base: base, logger: logger}
}

// Call POSTs the JSON payload to the URL. Any non-2xx response is a delivery
// failure; the body is drained and discarded either way.
func (w *WebhookClient) Call(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create webhook request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.base.Do(req)
	if err != nil {
		if _, ok := err.(*types.AppError); ok {
			return err
		}
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("webhook delivery failed: %v", err),
			err,
		)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("webhook endpoint returned %d", resp.StatusCode),
			nil,
		)
	}
	return nil
}

// Compile-time assertion that WebhookClient satisfies WebhookCaller.
var _ WebhookCaller = (*WebhookClient)(nil)
