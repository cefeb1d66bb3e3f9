package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/domain/model"
	apperrors "github.com/target/caption-pipeline/internal/errors"
	"github.com/target/caption-pipeline/internal/observability/metrics"
	"github.com/target/caption-pipeline/internal/observability/notify"
	"github.com/target/caption-pipeline/internal/observability/statsd"
)

// Acknowledgement messages returned to the worker.
const (
	AckApplied          = "caption result applied"
	AckDuplicate        = "caption result already applied"
	AckUnknownPost      = "unknown post"
	AckStaleJob         = "stale job"
	AckAlreadyFinalized = "already finalized"
)

// ErrInvalidCallbackSecret is returned when the worker's shared secret does not match.
var ErrInvalidCallbackSecret = apperrors.Unauthorized("invalid callback secret")

// CaptionCallbackServiceOptions groups dependencies for CaptionCallbackService.
type CaptionCallbackServiceOptions struct {
	Ports CaptionPorts // Posts and Registry are required; Queue is unused
	// Secret is the shared worker secret. Empty rejects every callback.
	Secret   string
	Logger   *slog.Logger
	Metrics  statsd.Sink
	Notifier FailureNotifier
}

// CaptionCallbackService applies worker results to the post store and the job registry.
type CaptionCallbackService struct {
	posts    core.PostRepository
	registry core.JobRegistry
	secret   []byte
	logger   *slog.Logger
	metrics  statsd.Sink
	notifier FailureNotifier
}

// NewCaptionCallbackService constructs a new CaptionCallbackService.
func NewCaptionCallbackService(opts CaptionCallbackServiceOptions) (*CaptionCallbackService, error) {
	if opts.Ports.Posts == nil {
		return nil, errors.New("PostRepository is required")
	}
	if opts.Ports.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "caption_callback_service")
	if opts.Secret == "" {
		logger.Warn("callback secret is empty; every worker callback will be rejected")
	}

	return &CaptionCallbackService{
		posts:    opts.Ports.Posts,
		registry: opts.Ports.Registry,
		secret:   []byte(opts.Secret),
		logger:   logger,
		metrics:  statsd.OrDiscard(opts.Metrics),
		notifier: opts.Notifier,
	}, nil
}

// MustNewCaptionCallbackService constructs a CaptionCallbackService and panics on error.
func MustNewCaptionCallbackService(opts CaptionCallbackServiceOptions) *CaptionCallbackService {
	svc, err := NewCaptionCallbackService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create CaptionCallbackService: %v", err))
	}
	return svc
}

// Authenticate compares the presented secret in constant time.
func (s *CaptionCallbackService) Authenticate(presented string) bool {
	if len(s.secret) == 0 || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare(s.secret, []byte(presented)) == 1
}

// ReceiveCaptionResult authenticates and applies one worker report. Duplicate, stale and
// unknown reports are acknowledged without mutation; Success=false in the ack tells the
// worker not to retry.
func (s *CaptionCallbackService) ReceiveCaptionResult(
	ctx context.Context,
	result model.CaptionResult,
	secret string,
) (*model.CallbackAck, error) {
	start := time.Now()
	if !s.Authenticate(secret) {
		s.emit(metrics.ResultError, "", "unauthorized", start, ErrInvalidCallbackSecret)
		s.logger.WarnContext(ctx, "rejected caption callback with invalid secret", "job_id", result.JobID)
		return nil, ErrInvalidCallbackSecret
	}
	if err := result.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	outcome := result.Outcome()
	applied, err := s.posts.ApplyCaptionOutcome(ctx, core.ApplyCaptionOutcomeParams{
		PostID:  result.PostID,
		JobID:   result.JobID,
		Outcome: outcome,
	})
	if err != nil {
		s.emit(metrics.ResultError, outcome.Status, "store", start, err)
		return nil, fmt.Errorf("apply caption outcome: %w", err)
	}

	if applied {
		s.updateRegistry(ctx, result.JobID, outcome)
		s.emit(metrics.ResultSuccess, outcome.Status, "", start, nil)
		s.notifyWorkerFailure(ctx, result, outcome)
		s.logger.InfoContext(ctx, "caption result applied",
			"job_id", result.JobID, "post_id", result.PostID, "status", outcome.Status)
		return &model.CallbackAck{Success: true, Message: AckApplied}, nil
	}

	return s.classify(ctx, result, outcome, start)
}

// classify explains why the compare-and-swap did not apply.
func (s *CaptionCallbackService) classify(
	ctx context.Context,
	result model.CaptionResult,
	outcome model.CaptionOutcome,
	start time.Time,
) (*model.CallbackAck, error) {
	post, err := s.posts.GetByID(ctx, result.PostID)
	if apperrors.IsNotFound(err) {
		s.emit(metrics.ResultNoop, outcome.Status, "unknown_post", start, nil)
		s.logger.WarnContext(ctx, "caption callback for unknown post",
			"job_id", result.JobID, "post_id", result.PostID)
		return &model.CallbackAck{Success: false, Message: AckUnknownPost}, nil
	}
	if err != nil {
		s.emit(metrics.ResultError, outcome.Status, "store", start, err)
		return nil, fmt.Errorf("load post: %w", err)
	}

	switch {
	case !post.IsCurrentJob(result.JobID):
		s.emit(metrics.ResultNoop, outcome.Status, "stale_job", start, nil)
		s.logger.InfoContext(ctx, "ignored caption callback for superseded job",
			"job_id", result.JobID, "post_id", result.PostID)
		return &model.CallbackAck{Success: false, Message: AckStaleJob}, nil

	case outcome.Matches(post):
		s.updateRegistry(ctx, result.JobID, outcome)
		s.emit(metrics.ResultNoop, outcome.Status, "duplicate", start, nil)
		s.logger.DebugContext(ctx, "duplicate caption callback", "job_id", result.JobID)
		return &model.CallbackAck{Success: true, Message: AckDuplicate}, nil

	case post.CaptionStatus.Terminal():
		s.emit(metrics.ResultNoop, outcome.Status, "already_finalized", start, nil)
		s.logger.WarnContext(ctx, "conflicting caption callback for finalized job",
			"job_id", result.JobID, "post_id", result.PostID,
			"post_status", post.CaptionStatus, "reported", outcome.Status)
		return &model.CallbackAck{Success: false, Message: AckAlreadyFinalized}, nil
	}

	// Current job, still pending, yet the swap missed: a concurrent writer got there first.
	s.emit(metrics.ResultError, outcome.Status, "conflict", start, nil)
	return nil, apperrors.Conflict("caption job state changed concurrently; retry")
}

// updateRegistry is best effort: the durable record has already been written.
func (s *CaptionCallbackService) updateRegistry(ctx context.Context, jobID string, outcome model.CaptionOutcome) {
	_, err := s.registry.Apply(ctx, jobID, outcome)
	switch {
	case errors.Is(err, core.ErrJobNotRegistered):
		s.logger.InfoContext(ctx, "caption job missing from registry", "job_id", jobID)
	case err != nil:
		s.logger.WarnContext(ctx, "registry update failed", "job_id", jobID, "error", err)
	}
}

func (s *CaptionCallbackService) notifyWorkerFailure(
	ctx context.Context,
	result model.CaptionResult,
	outcome model.CaptionOutcome,
) {
	if s.notifier == nil || outcome.Status != model.JobStatusFailed {
		return
	}
	s.notifier.NotifyAsync(ctx, notify.CaptionFailurePayload{
		JobID:      result.JobID,
		PostID:     result.PostID,
		Stage:      notify.StageWorker,
		Error:      outcome.Error,
		ErrorClass: "worker",
		Severity:   notify.SeverityWarning,
		OccurredAt: time.Now().UTC(),
	})
}

func (s *CaptionCallbackService) emit(result string, outcome model.JobStatus, reason string, start time.Time, err error) {
	metrics.EmitCaptionJob(s.metrics, metrics.CaptionMetric{
		Stage:    metrics.StageCallback,
		Result:   result,
		Outcome:  outcome,
		Reason:   reason,
		Duration: time.Since(start),
		Err:      err,
	})
}
