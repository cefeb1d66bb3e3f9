// Package workerhttp dispatches caption jobs straight to the worker's HTTP API.
package workerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/domain/model"
)

const asyncCaptionsPath = "/v1/captions/async"

// maxErrorBody bounds how much of a failed response is echoed into the error.
const maxErrorBody = 4 << 10

// Config configures the HTTP dispatcher.
type Config struct {
	// BaseURL is the worker root, e.g. http://caption-worker:8000.
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// CaptionQueue POSTs each job message to the worker. Any non-2xx reply is an enqueue failure.
type CaptionQueue struct {
	endpoint string
	client   *http.Client
}

var _ core.CaptionQueue = (*CaptionQueue)(nil)

// NewCaptionQueue builds an HTTP dispatcher. Callers should pass a validated config.
func NewCaptionQueue(cfg Config) (*CaptionQueue, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("worker base url is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid worker base url %q", base)
	}
	endpoint, err := url.JoinPath(u.String(), asyncCaptionsPath)
	if err != nil {
		return nil, fmt.Errorf("build worker endpoint: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &CaptionQueue{endpoint: endpoint, client: hc}, nil
}

// Endpoint returns the URL jobs are posted to.
func (q *CaptionQueue) Endpoint() string {
	return q.endpoint
}

// Enqueue posts msg to the worker.
func (q *CaptionQueue) Enqueue(ctx context.Context, msg model.CaptionJobMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode caption job: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("worker request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("worker %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
