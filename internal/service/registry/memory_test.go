package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/domain/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemory_CreateGetApply(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	reg := NewMemory(MemoryConfig{Now: clock.Now})

	require.NoError(t, reg.Create(ctx, model.NewCaptionJob("job-1", "post-1", clock.Now())))

	got, err := reg.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, got.Status)
	assert.Equal(t, "post-1", got.PostID)

	clock.Advance(time.Second)
	applied, err := reg.Apply(ctx, "job-1", model.CompletedOutcome("hello"))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, applied.Status)
	require.NotNil(t, applied.Caption)
	assert.Equal(t, "hello", *applied.Caption)
	assert.True(t, applied.UpdatedAt.After(applied.CreatedAt))

	// terminal entries are never rewritten
	again, err := reg.Apply(ctx, "job-1", model.FailedOutcome("late"))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, again.Status)
	assert.Nil(t, again.Error)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory(MemoryConfig{})
	require.NoError(t, reg.Create(ctx, model.NewCaptionJob("job-1", "post-1", time.Now())))

	got, err := reg.Get(ctx, "job-1")
	require.NoError(t, err)
	got.Status = model.JobStatusFailed

	again, err := reg.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, again.Status)
}

func TestMemory_UnknownJob(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory(MemoryConfig{})

	_, err := reg.Get(ctx, "missing")
	require.ErrorIs(t, err, core.ErrJobNotRegistered)

	_, err = reg.Apply(ctx, "missing", model.FailedOutcome("x"))
	require.ErrorIs(t, err, core.ErrJobNotRegistered)

	require.Error(t, reg.Create(ctx, model.CaptionJob{}))
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	reg := NewMemory(MemoryConfig{TTL: time.Hour, Now: clock.Now})

	require.NoError(t, reg.Create(ctx, model.NewCaptionJob("job-1", "post-1", clock.Now())))
	require.NoError(t, reg.Create(ctx, model.NewCaptionJob("job-2", "post-2", clock.Now())))

	clock.Advance(45 * time.Minute)
	require.NoError(t, reg.Create(ctx, model.NewCaptionJob("job-3", "post-3", clock.Now())))
	got, err := reg.Apply(ctx, "job-2", model.FailedOutcome("boom"))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)

	// retention counts from Create; the terminal write at 45m does not extend it
	clock.Advance(30 * time.Minute)
	_, err = reg.Get(ctx, "job-1")
	require.ErrorIs(t, err, core.ErrJobNotRegistered)
	_, err = reg.Get(ctx, "job-2")
	require.ErrorIs(t, err, core.ErrJobNotRegistered)

	got, err = reg.Get(ctx, "job-3")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, got.Status)

	clock.Advance(time.Hour)
	assert.Equal(t, 1, reg.Purge())
	assert.Equal(t, 0, reg.Len())
}

func TestMemory_CapacityEviction(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory(MemoryConfig{Capacity: 2})

	require.NoError(t, reg.Create(ctx, model.NewCaptionJob("a", "p", time.Now())))
	require.NoError(t, reg.Create(ctx, model.NewCaptionJob("b", "p", time.Now())))
	_, err := reg.Get(ctx, "a") // a becomes most recently used
	require.NoError(t, err)
	require.NoError(t, reg.Create(ctx, model.NewCaptionJob("c", "p", time.Now())))

	_, err = reg.Get(ctx, "b")
	require.ErrorIs(t, err, core.ErrJobNotRegistered)
	_, err = reg.Get(ctx, "a")
	require.NoError(t, err)

	stats := reg.Stats()
	assert.Equal(t, uint64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 2, stats.Capacity)
}

func TestMemory_ConcurrentApply(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory(MemoryConfig{})
	require.NoError(t, reg.Create(ctx, model.NewCaptionJob("job", "post", time.Now())))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = reg.Apply(ctx, "job", model.CompletedOutcome(fmt.Sprintf("caption-%d", i)))
		}()
	}
	wg.Wait()

	got, err := reg.Get(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Caption)
}
