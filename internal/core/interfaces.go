// Package core defines the ports the caption pipeline services depend on.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/target/caption-pipeline/internal/domain/model"
)

// This file contains the port definitions (hexagonal architecture) between the service layer
// and the adapters that back it: the durable post store, the job registry and the queue.

// ErrJobNotRegistered is returned by a JobRegistry that has no record of a job id.
// Registries are caches; callers must treat this as "unknown", never as a failure.
var ErrJobNotRegistered = errors.New("caption job not registered")

// PostRepository is the durable store of posts and their caption state.
type PostRepository interface {
	Create(ctx context.Context, req *model.CreatePostRequest) (*model.Post, error)
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// BeginCaptionJob resets the caption state to PENDING and records jobID as the current job.
	BeginCaptionJob(ctx context.Context, params BeginCaptionJobParams) (*model.Post, error)
	// ApplyCaptionOutcome writes a terminal outcome only if the post is still PENDING on jobID.
	// It returns false when the compare-and-swap did not match.
	ApplyCaptionOutcome(ctx context.Context, params ApplyCaptionOutcomeParams) (bool, error)
	// FinalizePost stores the committed caption. It refuses while a caption job is PENDING.
	FinalizePost(ctx context.Context, params FinalizePostParams) (*model.Post, error)
	// FailStalePending fails posts stuck in PENDING longer than maxAge.
	FailStalePending(ctx context.Context, params FailStalePendingParams) ([]model.StaleCaption, error)
	CountByCaptionStatus(ctx context.Context) (*model.CaptionStats, error)
}

// BeginCaptionJobParams groups parameters for PostRepository.BeginCaptionJob.
type BeginCaptionJobParams struct {
	PostID   string
	JobID    string
	MediaURL string
	Mood     string
}

// ApplyCaptionOutcomeParams groups parameters for PostRepository.ApplyCaptionOutcome.
type ApplyCaptionOutcomeParams struct {
	PostID  string
	JobID   string
	Outcome model.CaptionOutcome
}

// FinalizePostParams groups parameters for PostRepository.FinalizePost.
type FinalizePostParams struct {
	PostID       string
	FinalCaption string
}

// FailStalePendingParams groups parameters for PostRepository.FailStalePending.
type FailStalePendingParams struct {
	MaxAge    time.Duration
	BatchSize int
	Reason    string
}

// JobRegistry is the ephemeral job_id → job state view. It must be safe for concurrent use
// and bounded (TTL and/or capacity).
type JobRegistry interface {
	Create(ctx context.Context, job model.CaptionJob) error
	// Get returns ErrJobNotRegistered when the job is unknown or evicted.
	Get(ctx context.Context, jobID string) (*model.CaptionJob, error)
	// Apply moves a PENDING job to the outcome. Terminal jobs are returned unchanged.
	Apply(ctx context.Context, jobID string, outcome model.CaptionOutcome) (*model.CaptionJob, error)
}

// CaptionQueue hands caption jobs to the external worker tier.
type CaptionQueue interface {
	Enqueue(ctx context.Context, msg model.CaptionJobMessage) error
}

// HealthChecker is implemented by adapters that can report connectivity.
type HealthChecker interface {
	Health(ctx context.Context) error
}
