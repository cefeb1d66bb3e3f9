// Package failurenotifier fans caption failure events out to the configured alert sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/target/caption-pipeline/internal/observability/notify"
)

const defaultAsyncTimeout = 15 * time.Second

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Stages limits notifications to the listed stages. Empty means all stages.
	Stages []notify.Stage
	// AsyncTimeout bounds background deliveries started by NotifyAsync.
	AsyncTimeout time.Duration
}

// Service dispatches failure events to all registered sinks.
type Service struct {
	logger       *slog.Logger
	sinks        []SinkRegistration
	stages       map[notify.Stage]struct{}
	asyncTimeout time.Duration
	inflight     sync.WaitGroup
}

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "failure_notifier")

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		sinks = append(sinks, SinkRegistration{
			Name: notify.FallbackString(entry.Name, "sink"),
			Sink: entry.Sink,
		})
	}

	var stages map[notify.Stage]struct{}
	if len(opts.Stages) > 0 {
		stages = make(map[notify.Stage]struct{}, len(opts.Stages))
		for _, s := range opts.Stages {
			stages[s] = struct{}{}
		}
	}

	timeout := opts.AsyncTimeout
	if timeout <= 0 {
		timeout = defaultAsyncTimeout
	}

	return &Service{
		logger:       logger,
		sinks:        sinks,
		stages:       stages,
		asyncTimeout: timeout,
	}
}

// NotifyCaptionFailure fans the payload out to all sinks and waits for delivery.
func (s *Service) NotifyCaptionFailure(ctx context.Context, payload notify.CaptionFailurePayload) {
	if s == nil || !s.wants(payload.Stage) {
		return
	}
	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now().UTC()
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendCaptionFailure(ctx, payload); err != nil {
				s.logger.ErrorContext(ctx, "failure notifier delivery error",
					"sink", entry.Name,
					"job_id", payload.JobID,
					"post_id", payload.PostID,
					"stage", payload.Stage,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// NotifyAsync delivers in the background so request paths never wait on alert sinks.
// The delivery outlives ctx cancellation but is bounded by the async timeout.
func (s *Service) NotifyAsync(ctx context.Context, payload notify.CaptionFailurePayload) {
	if s == nil || !s.wants(payload.Stage) {
		return
	}
	detached := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		sendCtx, cancel := context.WithTimeout(detached, s.asyncTimeout)
		defer cancel()
		s.NotifyCaptionFailure(sendCtx, payload)
	}()
}

// Wait blocks until background deliveries finish. Used during shutdown and in tests.
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.inflight.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}

func (s *Service) wants(stage notify.Stage) bool {
	if len(s.sinks) == 0 {
		return false
	}
	if s.stages == nil {
		return true
	}
	_, ok := s.stages[stage]
	return ok
}
