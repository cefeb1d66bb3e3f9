package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a rejected response is echoed into the error.
const maxErrorBody = 4 << 10

// JSONPost describes a webhook delivery with linear-backoff retries.
type JSONPost struct {
	Client  *http.Client
	URL     string
	Body    []byte
	Retries int
	// Service names the destination in error messages, e.g. "slack webhook".
	Service string
	// Backoff is multiplied by the attempt number between tries. Defaults to 200ms.
	Backoff time.Duration
}

// PostJSON delivers p.Body, retrying up to p.Retries extra times on any failure.
func PostJSON(ctx context.Context, p JSONPost) error {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := max(p.Retries, 0) + 1

	var lastErr error
	for attempt := range attempts {
		lastErr = postOnce(ctx, p)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func postOnce(ctx context.Context, p JSONPost) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(p.Body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", p.Service, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", p.Service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return fmt.Errorf("read %s error response: %w", p.Service, readErr)
		}
		return fmt.Errorf("%s %s: %s", p.Service, resp.Status, strings.TrimSpace(string(body)))
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain %s response body: %w", p.Service, err)
	}
	return nil
}
