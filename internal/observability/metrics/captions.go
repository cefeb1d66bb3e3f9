// Package metrics emits caption pipeline metrics through a statsd sink.
package metrics

import (
	"time"

	"github.com/target/caption-pipeline/internal/domain/model"
	obserrors "github.com/target/caption-pipeline/internal/observability/errors"
	"github.com/target/caption-pipeline/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Stage constants for metric tagging.
const (
	StageEnqueue  = "enqueue"
	StageCallback = "callback"
	StageReap     = "reap"
)

// CaptionMetric captures one caption pipeline event for metric emission.
type CaptionMetric struct {
	Stage    string
	Result   string
	Outcome  model.JobStatus
	Reason   string
	Duration time.Duration
	Err      error
}

// EmitCaptionJob emits standardised caption job metrics.
func EmitCaptionJob(sink statsd.Sink, in CaptionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"stage":  in.Stage,
		"result": in.Result,
	}
	if in.Outcome != "" {
		tags["outcome"] = string(in.Outcome)
	}
	if in.Reason != "" {
		tags["reason"] = in.Reason
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("caption.job", 1, tags)

	if in.Duration > 0 {
		sink.Timing("caption.job.duration", in.Duration, CloneTags(tags))
	}
}

// EmitCaptionStats publishes one gauge per caption status.
func EmitCaptionStats(sink statsd.Sink, stats *model.CaptionStats) {
	if sink == nil || stats == nil {
		return
	}
	counts := map[model.CaptionStatus]int64{
		model.CaptionStatusNone:      stats.None,
		model.CaptionStatusPending:   stats.Pending,
		model.CaptionStatusCompleted: stats.Completed,
		model.CaptionStatusFailed:    stats.Failed,
	}
	for status, n := range counts {
		sink.Gauge("caption.posts", float64(n), map[string]string{"status": string(status)})
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
