package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"phalanx/internal/scoring"
)

// ForwardError wraps a failed delivery to the compliance collaborator. It is
// logged and swallowed; a failed forward never fails the verdict.
type ForwardError struct {
	URL string
	Err error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("forward to %s: %v", e.URL, e.Err)
}

func (e *ForwardError) Unwrap() error {
	return e.Err
}

// WebhookForwarder posts each verdict to the compliance collaborator's
// report-anomaly endpoint.
type WebhookForwarder struct {
	url    string
	client *http.Client
}

// NewWebhookForwarder creates a forwarder for the given report-anomaly URL.
func NewWebhookForwarder(url string) *WebhookForwarder {
	return &WebhookForwarder{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Forward posts the verdict as JSON. Non-2xx responses are failures.
func (f *WebhookForwarder) Forward(ctx context.Context, v *scoring.Verdict) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return &ForwardError{URL: f.url, Err: fmt.Errorf("failed to marshal verdict: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", f.url, bytes.NewReader(payload))
	if err != nil {
		return &ForwardError{URL: f.url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return &ForwardError{URL: f.url, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ForwardError{URL: f.url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return nil
}
