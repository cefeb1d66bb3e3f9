// Package reaper runs the caption reaper as a background service.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/caption-pipeline/config"
	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/observability/statsd"
	"github.com/target/caption-pipeline/internal/service"
)

// Runner owns a ReaperService and its loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Posts    core.PostRepository
	Registry core.JobRegistry // Optional: timed-out jobs are mirrored here when set
	Config   config.ReaperConfig
	Logger   *slog.Logger
	Metrics  statsd.Sink
	Notifier service.FailureNotifier
}

// NewRunner creates a reaper runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Posts == nil {
		return nil, errors.New("post repository is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	svc, err := service.NewReaperService(service.ReaperServiceOptions{
		Ports:    service.CaptionPorts{Posts: opts.Posts, Registry: opts.Registry},
		Config:   opts.Config,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
		Notifier: opts.Notifier,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: svc, logger: opts.Logger}, nil
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}

// RunOnce performs a single sweep.
func (r *Runner) RunOnce(ctx context.Context) (*service.ReapResult, error) {
	return r.reaper.RunOnce(ctx)
}
