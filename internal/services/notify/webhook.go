package notify

import (
	"context"
	"fmt"
	"time"

	xhttp "FolioSim/pkg/http"
)

// TypeRunCompleted is the queue message type published after each stored run.
const TypeRunCompleted = "run_completed"

const (
	defaultTimeout  = 5 * time.Second
	defaultAttempts = 3
)

// WebhookClient posts run summaries to an external HTTP endpoint.
type WebhookClient struct {
	url      string
	attempts int
	client   *xhttp.Client
}

// NewWebhookClient creates a webhook client for the given URL.
func NewWebhookClient(url string, timeout time.Duration, attempts int) *WebhookClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	return &WebhookClient{
		url:      url,
		attempts: attempts,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// Send delivers the payload, retrying transient failures with a linear backoff.
func (w *WebhookClient) Send(ctx context.Context, payload interface{}) error {
	if w.url == "" {
		return fmt.Errorf("webhook url not configured")
	}

	var lastErr error
	for i := 0; i < w.attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(i) * 50 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if lastErr = w.post(ctx, payload); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", w.attempts, lastErr)
}

func (w *WebhookClient) post(ctx context.Context, payload interface{}) error {
	return w.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    w.url,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, nil)
}
