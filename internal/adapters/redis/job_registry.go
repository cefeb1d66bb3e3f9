// Package redis provides Redis-based adapters for the caption pipeline.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/domain/model"
)

const (
	defaultJobKeyPrefix = "caption:job:"
	defaultJobTTL       = 24 * time.Hour
	maxApplyAttempts    = 5
)

// JobRegistryOptions configures JobRegistry.
type JobRegistryOptions struct {
	Client redis.UniversalClient
	Prefix string
	// TTL is set when a job is created so abandoned jobs age out. Apply keeps it.
	TTL time.Duration
	Now func() time.Time
}

// JobRegistry stores caption jobs as JSON strings with a TTL, so several API replicas
// can share job state.
type JobRegistry struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ core.JobRegistry = (*JobRegistry)(nil)

// NewJobRegistry creates a Redis-backed job registry.
func NewJobRegistry(opts JobRegistryOptions) (*JobRegistry, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultJobKeyPrefix
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultJobTTL
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &JobRegistry{client: opts.Client, prefix: prefix, ttl: ttl, now: now}, nil
}

func (r *JobRegistry) key(jobID string) string {
	return r.prefix + jobID
}

// Create stores job, replacing any previous entry with the same id.
func (r *JobRegistry) Create(ctx context.Context, job model.CaptionJob) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal caption job: %w", err)
	}
	if err := r.client.Set(ctx, r.key(job.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns the job or core.ErrJobNotRegistered.
func (r *JobRegistry) Get(ctx context.Context, jobID string) (*model.CaptionJob, error) {
	if jobID == "" {
		return nil, core.ErrJobNotRegistered
	}
	data, err := r.client.Get(ctx, r.key(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrJobNotRegistered
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeJob(data)
}

// Apply moves a PENDING job to outcome inside a WATCH transaction. Terminal jobs are
// returned unchanged.
func (r *JobRegistry) Apply(ctx context.Context, jobID string, outcome model.CaptionOutcome) (*model.CaptionJob, error) {
	if jobID == "" {
		return nil, core.ErrJobNotRegistered
	}
	key := r.key(jobID)

	var result *model.CaptionJob
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return core.ErrJobNotRegistered
			}
			return fmt.Errorf("redis get: %w", err)
		}
		job, err := decodeJob(data)
		if err != nil {
			return err
		}
		if !job.Apply(outcome, r.now()) {
			result = job
			return nil
		}
		updated, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal caption job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		result = job
		return nil
	}

	for range maxApplyAttempts {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("apply caption job %s: too much contention", jobID)
}

// Health pings Redis.
func (r *JobRegistry) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decodeJob(data []byte) (*model.CaptionJob, error) {
	var job model.CaptionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal caption job: %w", err)
	}
	return &job, nil
}
