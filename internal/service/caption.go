package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/target/caption-pipeline/config"
	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/domain/model"
	apperrors "github.com/target/caption-pipeline/internal/errors"
	obserrors "github.com/target/caption-pipeline/internal/observability/errors"
	"github.com/target/caption-pipeline/internal/observability/metrics"
	"github.com/target/caption-pipeline/internal/observability/notify"
	"github.com/target/caption-pipeline/internal/observability/statsd"
)

// ErrEnqueueFailed marks a caption job that never reached the worker queue.
var ErrEnqueueFailed = errors.New("caption job could not be enqueued")

// compensateTimeout bounds the writes that fail a job after its enqueue failed.
const compensateTimeout = 5 * time.Second

// FailureNotifier receives caption failures for out-of-band alerting.
type FailureNotifier interface {
	NotifyAsync(ctx context.Context, payload notify.CaptionFailurePayload)
}

// CaptionPorts groups the adapters the caption services talk to.
type CaptionPorts struct {
	Posts    core.PostRepository // Required
	Registry core.JobRegistry    // Required
	Queue    core.CaptionQueue   // Required for CaptionService
}

// CaptionServiceOptions groups dependencies for CaptionService.
type CaptionServiceOptions struct {
	Ports    CaptionPorts
	Config   config.CaptionConfig
	Logger   *slog.Logger    // Optional: structured logger
	Metrics  statsd.Sink     // Optional: metrics sink
	Notifier FailureNotifier // Optional: failure fan-out
	// NewJobID and Now are overridable for tests.
	NewJobID func() string
	Now      func() time.Time
}

// CaptionService orchestrates caption jobs: it checks preconditions, records the job on the
// post and in the registry, and hands the job to the worker queue.
type CaptionService struct {
	posts    core.PostRepository
	registry core.JobRegistry
	queue    core.CaptionQueue
	cfg      config.CaptionConfig
	logger   *slog.Logger
	metrics  statsd.Sink
	notifier FailureNotifier
	newJobID func() string
	now      func() time.Time
}

// InitCaptionJobResult is returned once a job is enqueued.
type InitCaptionJobResult struct {
	JobID  string          `json:"job_id"`
	PostID string          `json:"post_id"`
	Status model.JobStatus `json:"status"`
}

// CreateAiPostResult carries the new post and, for videos, the caption job started for it.
type CreateAiPostResult struct {
	Post  *model.Post
	JobID string
}

// NewCaptionService constructs a new CaptionService.
func NewCaptionService(opts CaptionServiceOptions) (*CaptionService, error) {
	if opts.Ports.Posts == nil {
		return nil, errors.New("PostRepository is required")
	}
	if opts.Ports.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}
	if opts.Ports.Queue == nil {
		return nil, errors.New("CaptionQueue is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "caption_service")

	svc := &CaptionService{
		posts:    opts.Ports.Posts,
		registry: opts.Ports.Registry,
		queue:    opts.Ports.Queue,
		cfg:      opts.Config,
		logger:   logger,
		metrics:  statsd.OrDiscard(opts.Metrics),
		notifier: opts.Notifier,
		newJobID: opts.NewJobID,
		now:      opts.Now,
	}
	if svc.newJobID == nil {
		svc.newJobID = uuid.NewString
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.cfg.EnqueueTimeout <= 0 {
		svc.cfg.EnqueueTimeout = 5 * time.Second
	}

	logger.Debug("CaptionService initialized",
		"callback_url", svc.cfg.CallbackURL(),
		"enqueue_timeout", svc.cfg.EnqueueTimeout,
	)
	return svc, nil
}

// MustNewCaptionService constructs a CaptionService and panics on error.
func MustNewCaptionService(opts CaptionServiceOptions) *CaptionService {
	svc, err := NewCaptionService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create CaptionService: %v", err))
	}
	return svc
}

// InitCaptionJob starts a caption job for an existing VIDEO post. A newer job supersedes any
// job still pending on the post.
func (s *CaptionService) InitCaptionJob(
	ctx context.Context,
	req model.InitCaptionJobRequest,
) (*InitCaptionJobResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	post, err := s.posts.GetByID(ctx, req.PostID)
	if err != nil {
		return nil, s.lookupError(err, "load post")
	}

	_, jobID, err := s.startJob(ctx, post, req)
	if err != nil {
		return nil, err
	}
	return &InitCaptionJobResult{JobID: jobID, PostID: post.ID, Status: model.JobStatusPending}, nil
}

// CreateAiPost persists a post and starts captioning when it is a video.
// Photos are stored with caption status NONE and no job.
func (s *CaptionService) CreateAiPost(ctx context.Context, req model.CreatePostRequest) (*CreateAiPostResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	post, err := s.posts.Create(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	if !post.MediaType.QueueEligible() {
		return &CreateAiPostResult{Post: post}, nil
	}

	updated, jobID, err := s.startJob(ctx, post, model.InitCaptionJobRequest{
		PostID:   post.ID,
		MediaURL: post.MediaURL,
		Mood:     post.Mood,
	})
	if err != nil {
		return nil, err
	}
	return &CreateAiPostResult{Post: updated, JobID: jobID}, nil
}

// FinalizePost commits the caption the user accepted or edited. It is refused with a
// conflict while a caption job is PENDING; the caller waits for the result or resubmits.
func (s *CaptionService) FinalizePost(ctx context.Context, req model.FinalizePostRequest) (*model.Post, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	post, err := s.posts.FinalizePost(ctx, core.FinalizePostParams{
		PostID:       req.PostID,
		FinalCaption: req.FinalCaption,
	})
	if err != nil {
		return nil, s.lookupError(err, "finalize post")
	}
	s.logger.InfoContext(ctx, "post finalized",
		"post_id", post.ID,
		"caption_status", post.CaptionStatus,
		"final_caption_length", len([]rune(req.FinalCaption)),
	)
	return post, nil
}

// GetJobStatus reads the registry view of a job.
func (s *CaptionService) GetJobStatus(ctx context.Context, jobID string) (*model.JobStatusView, error) {
	if jobID == "" {
		return nil, apperrors.ValidationField("job_id", "job_id is required")
	}
	job, err := s.registry.Get(ctx, jobID)
	if errors.Is(err, core.ErrJobNotRegistered) {
		return nil, apperrors.NotFound("caption job not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "read caption job")
	}
	view := job.View()
	return &view, nil
}

// GetCaptionStatus reads the durable caption state of a post.
func (s *CaptionService) GetCaptionStatus(ctx context.Context, postID string) (*model.CaptionStatusView, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, s.lookupError(err, "load post")
	}
	view := model.NewCaptionStatusView(post)
	return &view, nil
}

// CaptionStats counts posts per caption status.
func (s *CaptionService) CaptionStats(ctx context.Context) (*model.CaptionStats, error) {
	stats, err := s.posts.CountByCaptionStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count caption statuses: %w", err)
	}
	return stats, nil
}

func (s *CaptionService) startJob(
	ctx context.Context,
	post *model.Post,
	req model.InitCaptionJobRequest,
) (*model.Post, string, error) {
	if !post.MediaType.QueueEligible() {
		return nil, "", apperrors.ValidationField("media_type", "captions can only be generated for VIDEO posts")
	}
	mediaURL := req.MediaURL
	if mediaURL == "" {
		mediaURL = post.MediaURL
	}
	if err := model.ValidateMediaURL(mediaURL); err != nil {
		return nil, "", apperrors.ValidationField("media_url", err.Error())
	}
	mood := req.Mood
	if mood == "" {
		mood = model.NormalizeMood(post.Mood)
	}

	start := s.now()
	jobID := s.newJobID()

	updated, err := s.posts.BeginCaptionJob(ctx, core.BeginCaptionJobParams{
		PostID:   post.ID,
		JobID:    jobID,
		MediaURL: mediaURL,
		Mood:     mood,
	})
	if err != nil {
		return nil, "", s.lookupError(err, "begin caption job")
	}

	if err := s.registry.Create(ctx, model.NewCaptionJob(jobID, post.ID, start)); err != nil {
		s.logger.WarnContext(ctx, "registry create failed; job continues on the durable record",
			"job_id", jobID, "post_id", post.ID, "error", err)
	}

	msg := model.CaptionJobMessage{
		JobID:       jobID,
		PostID:      post.ID,
		VideoURL:    mediaURL,
		Mood:        mood,
		CallbackURL: s.cfg.CallbackURL(),
		Timestamp:   start.UnixMilli(),
		Language:    req.Language,
	}
	if err := s.enqueue(ctx, msg); err != nil {
		return nil, "", s.failEnqueue(ctx, msg, err, start)
	}

	metrics.EmitCaptionJob(s.metrics, metrics.CaptionMetric{
		Stage:    metrics.StageEnqueue,
		Result:   metrics.ResultSuccess,
		Outcome:  model.JobStatusPending,
		Duration: s.now().Sub(start),
	})
	s.logger.InfoContext(ctx, "caption job enqueued", "job_id", jobID, "post_id", post.ID, "mood", mood)
	return updated, jobID, nil
}

func (s *CaptionService) enqueue(ctx context.Context, msg model.CaptionJobMessage) error {
	enqueueCtx, cancel := context.WithTimeout(ctx, s.cfg.EnqueueTimeout)
	defer cancel()
	return s.queue.Enqueue(enqueueCtx, msg)
}

// failEnqueue records the job as FAILED everywhere and returns the error surfaced to the caller.
// The compensating writes survive cancellation of the request context.
func (s *CaptionService) failEnqueue(
	ctx context.Context,
	msg model.CaptionJobMessage,
	cause error,
	start time.Time,
) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	outcome := model.FailedOutcome("enqueue failed: " + cause.Error())
	applied, err := s.posts.ApplyCaptionOutcome(cctx, core.ApplyCaptionOutcomeParams{
		PostID:  msg.PostID,
		JobID:   msg.JobID,
		Outcome: outcome,
	})
	switch {
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to mark post FAILED after enqueue error",
			"job_id", msg.JobID, "post_id", msg.PostID, "error", err)
	case !applied:
		s.logger.InfoContext(ctx, "post moved on before enqueue failure was recorded",
			"job_id", msg.JobID, "post_id", msg.PostID)
	}

	if _, err := s.registry.Apply(cctx, msg.JobID, outcome); err != nil {
		s.logger.WarnContext(ctx, "registry update after enqueue failure", "job_id", msg.JobID, "error", err)
	}

	metrics.EmitCaptionJob(s.metrics, metrics.CaptionMetric{
		Stage:    metrics.StageEnqueue,
		Result:   metrics.ResultError,
		Outcome:  model.JobStatusFailed,
		Duration: s.now().Sub(start),
		Err:      cause,
	})

	if s.notifier != nil {
		s.notifier.NotifyAsync(ctx, notify.CaptionFailurePayload{
			JobID:      msg.JobID,
			PostID:     msg.PostID,
			Stage:      notify.StageEnqueue,
			Error:      cause.Error(),
			ErrorClass: obserrors.Classify(cause),
			Severity:   notify.SeverityCritical,
			OccurredAt: s.now(),
			Metadata:   map[string]string{"queue_backend": string(s.cfg.QueueBackend)},
		})
	}

	s.logger.ErrorContext(ctx, "caption job enqueue failed",
		"job_id", msg.JobID, "post_id", msg.PostID, "error", cause)
	return apperrors.Unavailable(fmt.Errorf("%w: %w", ErrEnqueueFailed, cause), "caption job could not be enqueued")
}

// lookupError keeps not-found and validation errors from the store intact and wraps the rest.
func (s *CaptionService) lookupError(err error, op string) error {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeNotFound, apperrors.ErrCodeValidation, apperrors.ErrCodeConflict:
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
