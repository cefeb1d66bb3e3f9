package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/domain/model"
	"github.com/target/caption-pipeline/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestRegistry(t *testing.T, client redis.UniversalClient) *JobRegistry {
	t.Helper()
	reg, err := NewJobRegistry(JobRegistryOptions{Client: client, Prefix: "test:caption:job:", TTL: time.Minute})
	require.NoError(t, err)
	return reg
}

func TestNewJobRegistry_RequiresClient(t *testing.T) {
	_, err := NewJobRegistry(JobRegistryOptions{})
	require.Error(t, err)
}

func TestJobRegistry_CreateGetApply(t *testing.T) {
	client := setupTestRedis(t)
	reg := newTestRegistry(t, client)
	ctx := context.Background()

	job := model.NewCaptionJob("job-1", "post-1", time.Now().UTC())
	require.NoError(t, reg.Create(ctx, job))

	got, err := reg.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, got.Status)
	assert.Equal(t, "post-1", got.PostID)

	ttl, err := client.TTL(ctx, "test:caption:job:job-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, client.Expire(ctx, "test:caption:job:job-1", 10*time.Second).Err())
	applied, err := reg.Apply(ctx, "job-1", model.FailedOutcome("worker crashed"))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, applied.Status)
	ttl, err = client.TTL(ctx, "test:caption:job:job-1").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 10*time.Second, "apply keeps the creation TTL")
	assert.Greater(t, ttl, time.Duration(0))
	require.NotNil(t, applied.Error)
	assert.Equal(t, "worker crashed", *applied.Error)

	again, err := reg.Apply(ctx, "job-1", model.CompletedOutcome("late"))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, again.Status)
	assert.Nil(t, again.Caption)
}

func TestJobRegistry_UnknownJob(t *testing.T) {
	client := setupTestRedis(t)
	reg := newTestRegistry(t, client)
	ctx := context.Background()

	_, err := reg.Get(ctx, "nope")
	require.ErrorIs(t, err, core.ErrJobNotRegistered)

	_, err = reg.Apply(ctx, "nope", model.CompletedOutcome("x"))
	require.ErrorIs(t, err, core.ErrJobNotRegistered)
}

func TestJobRegistry_ConcurrentApply(t *testing.T) {
	client := setupTestRedis(t)
	reg := newTestRegistry(t, client)
	ctx := context.Background()
	require.NoError(t, reg.Create(ctx, model.NewCaptionJob("job-c", "post", time.Now().UTC())))

	var wg sync.WaitGroup
	captions := make(chan string, 10)
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := reg.Apply(ctx, "job-c", model.CompletedOutcome(fmt.Sprintf("c-%d", i)))
			if err == nil && job.Caption != nil {
				captions <- *job.Caption
			}
		}()
	}
	wg.Wait()
	close(captions)

	got, err := reg.Get(ctx, "job-c")
	require.NoError(t, err)
	require.NotNil(t, got.Caption)
	for c := range captions {
		assert.Equal(t, *got.Caption, c, "every caller must observe the single winning outcome")
	}
}
