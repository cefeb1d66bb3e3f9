package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/target/caption-pipeline/config"
	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/domain/model"
	obserrors "github.com/target/caption-pipeline/internal/observability/errors"
	"github.com/target/caption-pipeline/internal/observability/metrics"
	"github.com/target/caption-pipeline/internal/observability/notify"
	"github.com/target/caption-pipeline/internal/observability/statsd"
	"github.com/target/caption-pipeline/internal/service/registry"
)

// ReasonCaptionTimedOut is recorded as caption_error on posts the reaper fails.
const ReasonCaptionTimedOut = "caption job timed out"

// registryPurger is implemented by registries that drop expired entries on demand.
type registryPurger interface {
	Purge() int
}

// registryReporter is implemented by registries that expose cache counters.
type registryReporter interface {
	Stats() registry.Stats
}

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Ports    CaptionPorts        // Required: Posts; Registry is optional
	Config   config.ReaperConfig // Required: reaper configuration
	Logger   *slog.Logger        // Optional: structured logger
	Metrics  statsd.Sink         // Optional: metrics sink (StatsD-compatible)
	Notifier FailureNotifier     // Optional: timeout notifications
}

// ReaperService fails captions whose worker never called back.
//
// Each sweep:
// - fails posts PENDING longer than CaptionPendingMaxAge and mirrors that into the registry;
// - purges expired entries from in-process registries;
// - publishes caption status and registry gauges.
type ReaperService struct {
	posts    core.PostRepository
	registry core.JobRegistry
	config   config.ReaperConfig
	logger   *slog.Logger
	metrics  statsd.Sink
	notifier FailureNotifier
}

// ReapResult summarises one sweep.
type ReapResult struct {
	Failed int64               `json:"failed"`
	Purged int64               `json:"purged"`
	Stats  *model.CaptionStats `json:"stats,omitempty"`
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Ports.Posts == nil {
		return nil, errors.New("PostRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"caption_pending_max_age", opts.Config.CaptionPendingMaxAge,
			"batch_size", opts.Config.BatchSize,
		)
	}

	return &ReaperService{
		posts:    opts.Ports.Posts,
		registry: opts.Ports.Registry,
		config:   opts.Config,
		logger:   logger,
		metrics:  statsd.OrDiscard(opts.Metrics),
		notifier: opts.Notifier,
	}, nil
}

// MustNewReaperService constructs a new ReaperService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewReaperService(opts ReaperServiceOptions) *ReaperService {
	svc, err := NewReaperService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create ReaperService: %v", err))
	}
	return svc
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Jitter keeps replicas that start together from sweeping in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(err, "initial sweep")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter sleeps up to 10% of the interval, or until ctx ends.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}
	timer := time.NewTimer(time.Duration(rand.Int64N(maxJitter))) // #nosec G404 -- scheduling jitter only
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(err, "sweep")
			}
		}
	}
}

// RunOnce performs a single sweep. It is also used by the admin CLI.
func (s *ReaperService) RunOnce(ctx context.Context) (*ReapResult, error) {
	start := time.Now()
	steps := []sweepStep{
		{name: "fail stale captions", run: s.failStaleCaptions},
		{name: "purge registry", run: s.purgeRegistry},
	}

	var errs []error
	onlyCanceled := true
	for i := range steps {
		steps[i].count, steps[i].err = steps[i].run(ctx)
		if err := steps[i].err; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", steps[i].name, err))
			onlyCanceled = onlyCanceled && isContextCancellation(err)
		}
	}

	result := &ReapResult{Failed: steps[0].count, Purged: steps[1].count}
	if stats, err := s.posts.CountByCaptionStatus(ctx); err != nil {
		if !isContextCancellation(err) {
			errs = append(errs, fmt.Errorf("count caption statuses: %w", err))
			onlyCanceled = false
		}
	} else {
		result.Stats = stats
		metrics.EmitCaptionStats(s.metrics, stats)
	}

	s.emitSweepMetrics(steps, time.Since(start))

	switch {
	case len(errs) == 0:
		return result, nil
	case onlyCanceled:
		return result, context.Canceled
	default:
		return result, fmt.Errorf("sweep failed: %w", errors.Join(errs...))
	}
}

type sweepStep struct {
	name  string
	run   func(context.Context) (int64, error)
	count int64
	err   error
}

// metricErr hides context cancellation from metrics; a shutdown is not a failed sweep.
func (st sweepStep) metricErr() error {
	if isContextCancellation(st.err) {
		return nil
	}
	return st.err
}

func (st sweepStep) operation() string {
	return strings.ReplaceAll(st.name, " ", "_")
}

// failStaleCaptions fails posts stuck in PENDING, batch by batch until none remain.
func (s *ReaperService) failStaleCaptions(ctx context.Context) (int64, error) {
	var total int64
	for {
		stale, err := s.posts.FailStalePending(ctx, core.FailStalePendingParams{
			MaxAge:    s.config.CaptionPendingMaxAge,
			BatchSize: s.config.BatchSize,
			Reason:    ReasonCaptionTimedOut,
		})
		if err != nil {
			return total, err
		}
		total += int64(len(stale))
		for _, sc := range stale {
			s.recordTimeout(ctx, sc)
		}
		if len(stale) < s.config.BatchSize || len(stale) == 0 {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "failed stale captions",
			"count", total,
			"max_age", s.config.CaptionPendingMaxAge,
		)
	}
	return total, nil
}

func (s *ReaperService) recordTimeout(ctx context.Context, sc model.StaleCaption) {
	outcome := model.FailedOutcome(ReasonCaptionTimedOut)
	if s.registry != nil && sc.JobID != "" {
		if _, err := s.registry.Apply(ctx, sc.JobID, outcome); err != nil &&
			!errors.Is(err, core.ErrJobNotRegistered) && s.logger != nil {
			s.logger.WarnContext(ctx, "registry update for timed out job", "job_id", sc.JobID, "error", err)
		}
	}

	metrics.EmitCaptionJob(s.metrics, metrics.CaptionMetric{
		Stage:   metrics.StageReap,
		Result:  metrics.ResultSuccess,
		Outcome: model.JobStatusFailed,
		Reason:  "timeout",
	})

	if s.notifier != nil {
		s.notifier.NotifyAsync(ctx, notify.CaptionFailurePayload{
			JobID:      sc.JobID,
			PostID:     sc.PostID,
			Stage:      notify.StageTimeout,
			Error:      ReasonCaptionTimedOut,
			ErrorClass: "timeout",
			Severity:   notify.SeverityWarning,
			OccurredAt: time.Now().UTC(),
			Metadata:   map[string]string{"max_age": s.config.CaptionPendingMaxAge.String()},
		})
	}
}

// purgeRegistry drops expired entries from registries that support it, then reports
// the registry's counters.
func (s *ReaperService) purgeRegistry(_ context.Context) (int64, error) {
	var purged int64
	if p, ok := s.registry.(registryPurger); ok {
		purged = int64(p.Purge())
	}
	if r, ok := s.registry.(registryReporter); ok {
		emitRegistryStats(s.metrics, r.Stats())
	}
	return purged, nil
}

func emitRegistryStats(sink statsd.Sink, st registry.Stats) {
	tags := map[string]string{"registry": "memory"}
	sink.Gauge("caption.registry.size", float64(st.Size), tags)
	sink.Gauge("caption.registry.capacity", float64(st.Capacity), metrics.CloneTags(tags))
	sink.Gauge("caption.registry.hits", float64(st.Hits), metrics.CloneTags(tags))
	sink.Gauge("caption.registry.misses", float64(st.Misses), metrics.CloneTags(tags))
	sink.Gauge("caption.registry.evictions", float64(st.Evictions), metrics.CloneTags(tags))
}

func (s *ReaperService) emitSweepMetrics(steps []sweepStep, elapsed time.Duration) {
	var (
		firstErr error
		total    int64
	)
	for _, st := range steps {
		total += st.count
		if firstErr == nil {
			firstErr = st.metricErr()
		}
	}

	tags := map[string]string{"result": sweepResult(total, firstErr)}
	if class := obserrors.Classify(firstErr); class != "" {
		tags["error_class"] = class
	}
	s.metrics.Count("reaper.cleanup", 1, tags)
	s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))

	for _, st := range steps {
		err := st.metricErr()
		opTags := map[string]string{"operation": st.operation(), "result": sweepResult(st.count, err)}
		if class := obserrors.Classify(err); class != "" {
			opTags["error_class"] = class
		}
		s.metrics.Count("reaper.cleanup_operation", 1, opTags)
		if err == nil && st.count > 0 {
			s.metrics.Count("reaper.items_processed", st.count, metrics.CloneTags(opTags))
		}
	}

	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func sweepResult(count int64, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case count == 0:
		return metrics.ResultNoop
	}
	return metrics.ResultSuccess
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
