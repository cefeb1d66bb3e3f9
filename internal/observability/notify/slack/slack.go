// Package slack delivers caption failure alerts to a Slack incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/target/caption-pipeline/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// PostURLPrefix turns post ids into links, e.g. https://admin.example/posts.
	PostURLPrefix string
}

// Client delivers caption failure notifications to a Slack webhook.
type Client struct {
	webhookURL    string
	channel       string
	username      string
	retryLimit    int
	postURLPrefix string
	client        *http.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
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
		webhookURL:    webhookURL,
		channel:       strings.TrimSpace(cfg.Channel),
		username:      notify.FallbackString(strings.TrimSpace(cfg.Username), "captiond"),
		retryLimit:    max(cfg.RetryLimit, 0),
		postURLPrefix: strings.TrimSpace(cfg.PostURLPrefix),
		client:        hc,
	}, nil
}

// SendCaptionFailure posts a formatted message to Slack.
func (c *Client) SendCaptionFailure(ctx context.Context, payload notify.CaptionFailurePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return notify.PostJSON(ctx, notify.JSONPost{
		Client:  c.client,
		URL:     c.webhookURL,
		Body:    body,
		Retries: c.retryLimit,
		Service: "slack webhook",
	})
}

func (c *Client) formatMessage(payload notify.CaptionFailurePayload) map[string]any {
	timestamp := payload.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	text := strings.Builder{}
	text.WriteString("*Caption job failure*")
	if payload.JobID != "" {
		text.WriteString(" `" + payload.JobID + "`")
	}
	if payload.Stage != "" {
		text.WriteString(" (" + string(payload.Stage) + ")")
	}
	text.WriteByte('\n')

	appendField(&text, "Severity", notify.FallbackString(payload.Severity, notify.SeverityCritical))
	appendField(&text, "Post", c.formatPostValue(payload.PostID))
	appendField(&text, "Error class", payload.ErrorClass)
	appendField(&text, "Error", escapeText(payload.Error))
	appendMetadata(&text, payload.Metadata)
	text.WriteString("• Timestamp: " + timestamp.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func (c *Client) formatPostValue(postID string) string {
	id := escapeText(strings.TrimSpace(postID))
	if id == "" {
		return ""
	}
	if link := c.buildPostLink(strings.TrimSpace(postID)); link != "" {
		return fmt.Sprintf("<%s|%s>", link, id)
	}
	return id
}

func (c *Client) buildPostLink(postID string) string {
	if c.postURLPrefix == "" {
		return ""
	}
	u, err := url.Parse(c.postURLPrefix)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	link, err := url.JoinPath(u.String(), postID)
	if err != nil {
		return ""
	}
	return link
}

func escapeText(value string) string {
	if value == "" {
		return ""
	}
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(value)
}

func appendField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• " + label + ": " + value + "\n")
}

func appendMetadata(text *strings.Builder, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	text.WriteString("• Metadata:\n")
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		text.WriteString("    • " + k + ": " + metadata[k] + "\n")
	}
}
