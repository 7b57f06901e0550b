// Package webhook delivers trigger notifications to customer endpoints with
// bounded exponential-backoff retries. The guarantee is at-least-once
// attempt; once the retry budget is spent the failure is surfaced to logs
// and metrics only.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/watchmarket/watchmarket/internal/model"
)

const defaultTimeout = 10 * time.Second

// Source identifies this platform in outbound payloads.
const Source = "watchmarket"

type Deliverer struct {
	client  *http.Client
	timeout time.Duration // per-attempt budget
}

func NewDeliverer(timeout time.Duration) *Deliverer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Deliverer{
		client:  &http.Client{}, // per-attempt deadline via ctx
		timeout: timeout,
	}
}

// Deliver posts the trigger envelope to url, retrying per policy with
// backoffMs * 2^attempt between attempts. It returns the number of attempts
// made and the last error (nil on success). The total attempt budget is
// policy.MaxRetries + 1.
func (d *Deliverer) Deliver(ctx context.Context, url, event string, ref model.WebhookWatcherRef, data map[string]any, policy model.RetryPolicy) (int, error) {
	maxAttempts := policy.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		payload := model.WebhookPayload{
			Event:     event,
			Watcher:   ref,
			Data:      data,
			Timestamp: time.Now().UTC(),
			Source:    Source,
			Delivery: model.WebhookDelivery{
				Attempt:     attempt + 1,
				MaxAttempts: maxAttempts,
			},
		}

		last = d.post(ctx, url, payload)
		if last == nil {
			return attempt + 1, nil
		}

		// last attempt: no backoff wait
		if attempt == maxAttempts-1 {
			break
		}

		wait := time.Duration(policy.BackoffMs<<attempt) * time.Millisecond
		select {
		case <-ctx.Done():
			return attempt + 1, ctx.Err()
		case <-time.After(wait):
		}
	}

	return maxAttempts, fmt.Errorf("webhook delivery failed after %d attempts: %w", maxAttempts, last)
}

func (d *Deliverer) post(ctx context.Context, url string, payload model.WebhookPayload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("webhook endpoint status=%d", res.StatusCode)
	}

	return nil
}
