package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/domain/model"
	apperrors "github.com/target/caption-pipeline/internal/errors"
	"github.com/target/caption-pipeline/internal/mocks"
	"github.com/target/caption-pipeline/internal/observability/notify"
	"github.com/target/caption-pipeline/internal/service/registry"
	"github.com/target/caption-pipeline/internal/testutil"
)

func TestCaptionCallback_AuthGate(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	post := p.createVideo(t)
	jobID := p.startJob(t, post.ID)
	result := *testutil.CaptionResult(jobID, post.ID, true, "forged", "")

	for _, secret := range []string{"", "wrong", testCallbackSecret + "x"} {
		ack, err := p.callbacks.ReceiveCaptionResult(ctx, result, secret)
		require.ErrorIs(t, err, ErrInvalidCallbackSecret)
		assert.True(t, apperrors.IsUnauthorized(err))
		assert.Nil(t, ack)
	}

	stored := p.post(t, post.ID)
	assert.Equal(t, model.CaptionStatusPending, stored.CaptionStatus)
	assert.Nil(t, stored.GeneratedCaption)

	job, err := p.captions.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)
}

func TestCaptionCallback_EmptySecretRejectsEverything(t *testing.T) {
	svc := MustNewCaptionCallbackService(CaptionCallbackServiceOptions{
		Ports: CaptionPorts{
			Posts:    mocks.NewMockPostRepository(gomock.NewController(t)),
			Registry: registry.NewMemory(registry.MemoryConfig{}),
		},
	})

	assert.False(t, svc.Authenticate(""))
	assert.False(t, svc.Authenticate("anything"))

	_, err := svc.ReceiveCaptionResult(context.Background(), model.CaptionResult{JobID: "j", PostID: "p"}, "")
	assert.ErrorIs(t, err, ErrInvalidCallbackSecret)
}

func TestCaptionCallback_Success(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	post := p.createVideo(t)
	jobID := p.startJob(t, post.ID)

	ack := p.report(t, testutil.CaptionResult(jobID, post.ID, true, "  Golden hour vibes  ", ""))
	assert.Equal(t, &model.CallbackAck{Success: true, Message: AckApplied}, ack)

	job, err := p.captions.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Caption)
	assert.Equal(t, "Golden hour vibes", *job.Caption)
	assert.Nil(t, job.Error)

	view, err := p.captions.GetCaptionStatus(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CaptionStatusCompleted, view.Status)
	assert.True(t, view.HasCaption)
	assert.Equal(t, job.Caption, view.Caption)
	assert.Nil(t, view.ErrorMessage)
	assert.Empty(t, p.notifier.stages())
}

func TestCaptionCallback_IdempotentReplay(t *testing.T) {
	p := newPipeline(t)
	post := p.createVideo(t)
	jobID := p.startJob(t, post.ID)
	result := testutil.CaptionResult(jobID, post.ID, true, "first", "")

	first := p.report(t, result)
	second := p.report(t, result)
	assert.True(t, first.Success)
	assert.Equal(t, AckApplied, first.Message)
	assert.True(t, second.Success)
	assert.Equal(t, AckDuplicate, second.Message)

	stored := p.post(t, post.ID)
	require.NotNil(t, stored.GeneratedCaption)
	assert.Equal(t, "first", *stored.GeneratedCaption)
}

func TestCaptionCallback_ConflictingReplayIsRejected(t *testing.T) {
	p := newPipeline(t)
	post := p.createVideo(t)
	jobID := p.startJob(t, post.ID)

	p.report(t, testutil.CaptionResult(jobID, post.ID, true, "first", ""))

	ack := p.report(t, testutil.CaptionResult(jobID, post.ID, true, "second", ""))
	assert.False(t, ack.Success)
	assert.Equal(t, AckAlreadyFinalized, ack.Message)

	ack = p.report(t, testutil.CaptionResult(jobID, post.ID, false, "", "model crashed"))
	assert.False(t, ack.Success)
	assert.Equal(t, AckAlreadyFinalized, ack.Message)

	stored := p.post(t, post.ID)
	assert.Equal(t, model.CaptionStatusCompleted, stored.CaptionStatus)
	assert.Equal(t, "first", *stored.GeneratedCaption)
}

func TestCaptionCallback_WorkerFailure(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	post := p.createVideo(t)
	jobID := p.startJob(t, post.ID)

	ack := p.report(t, testutil.CaptionResult(jobID, post.ID, false, "", "GPU out of memory"))
	assert.True(t, ack.Success)

	stored := p.post(t, post.ID)
	assert.Equal(t, model.CaptionStatusFailed, stored.CaptionStatus)
	assert.Nil(t, stored.GeneratedCaption)
	require.NotNil(t, stored.CaptionError)
	assert.Equal(t, "GPU out of memory", *stored.CaptionError)

	job, err := p.captions.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Nil(t, job.Caption)
	require.NotNil(t, job.Error)
	assert.Equal(t, "GPU out of memory", *job.Error)

	view, err := p.captions.GetCaptionStatus(ctx, post.ID)
	require.NoError(t, err)
	assert.False(t, view.HasCaption)
	assert.Equal(t, model.CaptionFailedMessage, *view.ErrorMessage)

	assert.Equal(t, []notify.Stage{notify.StageWorker}, p.notifier.stages())
}

func TestCaptionCallback_SuccessWithoutCaptionFails(t *testing.T) {
	p := newPipeline(t)
	post := p.createVideo(t)
	jobID := p.startJob(t, post.ID)

	ack := p.report(t, testutil.CaptionResult(jobID, post.ID, true, "   ", ""))
	assert.True(t, ack.Success)

	stored := p.post(t, post.ID)
	assert.Equal(t, model.CaptionStatusFailed, stored.CaptionStatus)
	assert.Nil(t, stored.GeneratedCaption)
	require.NotNil(t, stored.CaptionError)
	assert.Equal(t, model.ErrEmptyCaption.Error(), *stored.CaptionError)
}

func TestCaptionCallback_UnknownPost(t *testing.T) {
	p := newPipeline(t)

	ack := p.report(t, testutil.CaptionResult("job-x", "6d4f0ad0-0000-4000-8000-000000000000", true, "hi", ""))
	assert.False(t, ack.Success)
	assert.Equal(t, AckUnknownPost, ack.Message)
}

func TestCaptionCallback_RegistryMissStillApplies(t *testing.T) {
	p := newPipeline(t)
	post := p.createVideo(t)
	jobID := p.startJob(t, post.ID)

	// A restarted instance has an empty registry.
	restarted := MustNewCaptionCallbackService(CaptionCallbackServiceOptions{
		Ports:  CaptionPorts{Posts: p.repo, Registry: registry.NewMemory(registry.MemoryConfig{})},
		Secret: testCallbackSecret,
	})

	ack, err := restarted.ReceiveCaptionResult(context.Background(),
		*testutil.CaptionResult(jobID, post.ID, true, "after restart", ""), testCallbackSecret)
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, "after restart", *p.post(t, post.ID).GeneratedCaption)
}

func TestCaptionCallback_Validation(t *testing.T) {
	p := newPipeline(t)

	_, err := p.callbacks.ReceiveCaptionResult(context.Background(),
		model.CaptionResult{PostID: "p", Success: true}, testCallbackSecret)
	assert.True(t, apperrors.IsValidation(err))

	_, err = p.callbacks.ReceiveCaptionResult(context.Background(),
		model.CaptionResult{JobID: "j"}, testCallbackSecret)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCaptionCallback_ConcurrentDuplicates(t *testing.T) {
	p := newPipeline(t)
	post := p.createVideo(t)
	jobID := p.startJob(t, post.ID)
	result := *testutil.CaptionResult(jobID, post.ID, true, "once", "")

	const n = 8
	acks := make([]*model.CallbackAck, n)
	fns := make([]func() error, n)
	for i := range n {
		fns[i] = func() error {
			ack, err := p.callbacks.ReceiveCaptionResult(context.Background(), result, testCallbackSecret)
			acks[i] = ack
			return err
		}
	}
	for _, err := range testutil.RunConcurrent(fns...) {
		require.NoError(t, err)
	}

	applied := 0
	for _, ack := range acks {
		require.NotNil(t, ack)
		assert.True(t, ack.Success)
		if ack.Message == AckApplied {
			applied++
		}
	}
	assert.Equal(t, 1, applied)
}

func TestCaptionCallback_StoreErrors(t *testing.T) {
	result := model.CaptionResult{JobID: "job-1", PostID: "post-1", Success: true, Caption: testutil.StringPtr("c")}

	t.Run("apply fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		posts := mocks.NewMockPostRepository(ctrl)
		posts.EXPECT().ApplyCaptionOutcome(gomock.Any(), gomock.Any()).Return(false, errors.New("db down"))

		svc := MustNewCaptionCallbackService(CaptionCallbackServiceOptions{
			Ports:  CaptionPorts{Posts: posts, Registry: mocks.NewMockJobRegistry(ctrl)},
			Secret: testCallbackSecret,
		})
		_, err := svc.ReceiveCaptionResult(context.Background(), result, testCallbackSecret)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})

	t.Run("pending current job but swap missed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		posts := mocks.NewMockPostRepository(ctrl)
		posts.EXPECT().ApplyCaptionOutcome(gomock.Any(), core.ApplyCaptionOutcomeParams{
			PostID: "post-1", JobID: "job-1", Outcome: model.CompletedOutcome("c"),
		}).Return(false, nil)
		posts.EXPECT().GetByID(gomock.Any(), "post-1").Return(&model.Post{
			ID:            "post-1",
			CaptionStatus: model.CaptionStatusPending,
			CurrentJobID:  testutil.StringPtr("job-1"),
		}, nil)

		svc := MustNewCaptionCallbackService(CaptionCallbackServiceOptions{
			Ports:  CaptionPorts{Posts: posts, Registry: mocks.NewMockJobRegistry(ctrl)},
			Secret: testCallbackSecret,
		})
		_, err := svc.ReceiveCaptionResult(context.Background(), result, testCallbackSecret)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("registry error is absorbed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		posts := mocks.NewMockPostRepository(ctrl)
		reg := mocks.NewMockJobRegistry(ctrl)
		posts.EXPECT().ApplyCaptionOutcome(gomock.Any(), gomock.Any()).Return(true, nil)
		reg.EXPECT().Apply(gomock.Any(), "job-1", model.CompletedOutcome("c")).Return(nil, errors.New("redis down"))

		svc := MustNewCaptionCallbackService(CaptionCallbackServiceOptions{
			Ports:  CaptionPorts{Posts: posts, Registry: reg},
			Secret: testCallbackSecret,
		})
		ack, err := svc.ReceiveCaptionResult(context.Background(), result, testCallbackSecret)
		require.NoError(t, err)
		assert.True(t, ack.Success)
	})
}
