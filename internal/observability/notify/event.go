// Package notify defines the caption failure notification contract shared by alert sinks.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Stage names where in the pipeline a caption job failed.
type Stage string

const (
	// StageEnqueue means the job never reached the worker.
	StageEnqueue Stage = "enqueue"
	// StageWorker means the worker reported a failure through the callback.
	StageWorker Stage = "worker"
	// StageTimeout means no callback arrived before the pending deadline.
	StageTimeout Stage = "timeout"
)

// CaptionFailurePayload captures the data emitted for caption job failures.
type CaptionFailurePayload struct {
	JobID      string
	PostID     string
	Stage      Stage
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink describes a destination capable of consuming caption failure notifications.
type Sink interface {
	SendCaptionFailure(ctx context.Context, payload CaptionFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload CaptionFailurePayload) error

// SendCaptionFailure implements the Sink interface.
func (f SinkFunc) SendCaptionFailure(ctx context.Context, payload CaptionFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// FallbackString returns fallback when value is blank.
func FallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
