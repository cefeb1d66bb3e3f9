// Package pagerduty raises caption failure incidents through the PagerDuty Events API v2.
package pagerduty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/target/caption-pipeline/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint.
	Endpoint string
}

// Client publishes events via PagerDuty's Events API v2.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	retryLimit int
	client     *http.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient constructs a PagerDuty events client from config. Callers must provide a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		routingKey: key,
		source:     notify.FallbackString(strings.TrimSpace(cfg.Source), "captiond"),
		component:  notify.FallbackString(strings.TrimSpace(cfg.Component), "caption-pipeline"),
		endpoint:   notify.FallbackString(strings.TrimSpace(cfg.Endpoint), APIEndpoint),
		retryLimit: max(cfg.RetryLimit, 0),
		client:     hc,
	}, nil
}

// SendCaptionFailure submits a trigger event to PagerDuty.
func (c *Client) SendCaptionFailure(ctx context.Context, payload notify.CaptionFailurePayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}
	return notify.PostJSON(ctx, notify.JSONPost{
		Client:  c.client,
		URL:     c.endpoint,
		Body:    body,
		Retries: c.retryLimit,
		Service: "pagerduty api",
	})
}

func (c *Client) buildEvent(payload notify.CaptionFailurePayload) map[string]any {
	severity := notify.FallbackString(strings.ToLower(strings.TrimSpace(payload.Severity)), notify.SeverityCritical)

	occurredAt := payload.OccurredAt.UTC()
	if payload.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	custom := map[string]any{
		"job_id":      payload.JobID,
		"post_id":     payload.PostID,
		"stage":       string(payload.Stage),
		"error":       payload.Error,
		"error_class": payload.ErrorClass,
	}
	for k, v := range payload.Metadata {
		if _, exists := custom[k]; !exists {
			custom[k] = v
		}
	}

	// one incident per job; repeated alerts for the same job are folded together
	dedupKey := strings.Trim("caption:"+payload.JobID, ":")

	return map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		"dedup_key":    dedupKey,
		"payload": map[string]any{
			"summary": fmt.Sprintf(
				"Caption job %s for post %s failed (%s)",
				notify.FallbackString(payload.JobID, "unknown"),
				notify.FallbackString(payload.PostID, "unknown"),
				notify.FallbackString(string(payload.Stage), "unknown"),
			),
			"severity":       severity,
			"source":         c.source,
			"component":      c.component,
			"timestamp":      occurredAt.Format(time.RFC3339),
			"custom_details": custom,
		},
	}
}
