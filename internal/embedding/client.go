package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SchemeRemoteV1 identifies vectors produced by a remote model service.
const SchemeRemoteV1 = "remote/v1"

// HTTPEmbedder calls out to a remote embedding model service. Used when a
// real sentence-encoder is deployed alongside the platform; the built-in
// hashing embedder remains the default for self-contained operation.
type HTTPEmbedder struct {
	baseURL string
	scheme  string
	client  *http.Client
}

// NewHTTPEmbedder creates an embedder backed by a remote model service.
// The scheme string must identify the deployed model version; an empty
// scheme selects SchemeRemoteV1.
func NewHTTPEmbedder(baseURL, scheme string, timeout time.Duration) *HTTPEmbedder {
	if scheme == "" {
		scheme = SchemeRemoteV1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEmbedder{
		baseURL: baseURL,
		scheme:  scheme,
		client:  &http.Client{Timeout: timeout},
	}
}

// Scheme implements Embedder.
func (e *HTTPEmbedder) Scheme() string {
	return e.scheme
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(text string) ([]float32, error) {
	payload, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/v1/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, body)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(out.Vector) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}
	return out.Vector, nil
}
