package httpx

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/caption-pipeline/internal/domain/model"
	"github.com/target/caption-pipeline/internal/service"
)

func TestCreateAiPost_Video(t *testing.T) {
	f := newAPIFixture(t)

	postID, jobID := f.createVideoWithJob(t)

	msg := f.queue.last()
	assert.Equal(t, jobID, msg.JobID)
	assert.Equal(t, postID, msg.PostID)
	assert.Equal(t, "chill", msg.Mood)
	assert.Equal(t, "http://captiond.internal/api/ai/callback/captions", msg.CallbackURL)

	var job model.JobStatusView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/caption-jobs/"+jobID, nil, &job))
	assert.Equal(t, model.JobStatusPending, job.Status)

	var view model.CaptionStatusView
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/posts/"+postID+"/caption-status", nil, &view))
	assert.Equal(t, model.CaptionStatusPending, view.Status)
	assert.False(t, view.HasCaption)
}

func TestCreateAiPost_Photo(t *testing.T) {
	f := newAPIFixture(t)

	var resp createAiPostResponse
	code := f.do(t, http.MethodPost, "/api/posts/ai/init", map[string]string{
		"media_type": "photo",
		"media_url":  "https://cdn.example.com/p.jpg",
	}, &resp)
	require.Equal(t, http.StatusAccepted, code)
	assert.Empty(t, resp.JobID)
	assert.Equal(t, model.CaptionStatusNone, resp.CaptionStatus)
}

func TestCreateAiPost_BadRequests(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"malformed json", `{"media_type":`, "invalid_json"},
		{"unknown field", `{"media_type":"VIDEO","media_url":"x","extra":1}`, "invalid_json"},
		{"bad media type", `{"media_type":"AUDIO","media_url":"x"}`, "invalid_json"},
		{"missing url", map[string]string{"media_type": "VIDEO"}, "validation"},
		{"bad mood", map[string]string{"media_type": "VIDEO", "media_url": "x", "mood": "!!"}, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			code := f.do(t, http.MethodPost, "/api/posts/ai/init", tt.body, &body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestInitCaptionJob_ExistingPost(t *testing.T) {
	f := newAPIFixture(t)
	postID, firstJob := f.createVideoWithJob(t)

	var res service.InitCaptionJobResult
	code := f.do(t, http.MethodPost, "/api/posts/"+postID+"/captions",
		map[string]string{"mood": "funny", "language": "pt-BR"}, &res)
	require.Equal(t, http.StatusAccepted, code)
	assert.NotEqual(t, firstJob, res.JobID)
	assert.Equal(t, postID, res.PostID)
	assert.Equal(t, model.JobStatusPending, res.Status)

	msg := f.queue.last()
	assert.Equal(t, "funny", msg.Mood)
	assert.Equal(t, "pt-BR", msg.Language)

	// Empty body reuses the stored media URL and the mood of the previous job.
	code = f.do(t, http.MethodPost, "/api/posts/"+postID+"/captions", nil, &res)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "funny", f.queue.last().Mood)
}

func TestInitCaptionJob_Errors(t *testing.T) {
	f := newAPIFixture(t)

	var body map[string]string
	code := f.do(t, http.MethodPost, "/api/posts/0b7c6a3e-0000-4000-8000-000000000000/captions", nil, &body)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])

	var photo createAiPostResponse
	f.do(t, http.MethodPost, "/api/posts/ai/init",
		map[string]string{"media_type": "PHOTO", "media_url": "https://cdn/p.jpg"}, &photo)
	code = f.do(t, http.MethodPost, "/api/posts/"+photo.PostID+"/captions", nil, &body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "media_type", body["field"])
}

func TestInitCaptionJob_EnqueueFailure(t *testing.T) {
	f := newAPIFixture(t)
	postID, _ := f.createVideoWithJob(t)
	f.queue.err = errBoom

	var body map[string]string
	code := f.do(t, http.MethodPost, "/api/posts/"+postID+"/captions", nil, &body)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "enqueue_failed", body["error"])

	var view model.CaptionStatusView
	f.do(t, http.MethodGet, "/api/posts/"+postID+"/caption-status", nil, &view)
	assert.Equal(t, model.CaptionStatusFailed, view.Status)
	require.NotNil(t, view.ErrorMessage)
	assert.Equal(t, model.CaptionFailedMessage, *view.ErrorMessage)
}

func TestGetJobStatus_Unknown(t *testing.T) {
	f := newAPIFixture(t)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/caption-jobs/nope", nil, &body))
	assert.Equal(t, "not_found", body["error"])
}

func TestCaptionStats(t *testing.T) {
	f := newAPIFixture(t)
	f.createVideoWithJob(t)
	f.createVideoWithJob(t)

	var stats model.CaptionStats
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/captions/stats", nil, &stats))
	assert.Equal(t, model.CaptionStats{Pending: 2}, stats)
}

func TestFinalizePost(t *testing.T) {
	f := newAPIFixture(t)
	postID, jobID := f.createVideoWithJob(t)

	var body map[string]string
	code := f.do(t, http.MethodPost, "/api/posts/ai/commit",
		map[string]string{"postId": postID, "finalCaption": "Too soon"}, &body)
	assert.Equal(t, http.StatusConflict, code, "commit while PENDING is refused")
	assert.Equal(t, "conflict", body["error"])

	var view model.CaptionStatusView
	f.do(t, http.MethodGet, "/api/posts/"+postID+"/caption-status", nil, &view)
	assert.Equal(t, model.CaptionStatusPending, view.Status)

	var ack model.CallbackAck
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, DefaultCallbackPath, map[string]any{
		"jobId": jobID, "postId": postID, "status": "COMPLETED", "caption": "Waves at dusk",
	}, &ack, CallbackSecretHeader, testSecret))

	var res finalizePostResponse
	code = f.do(t, http.MethodPost, "/api/posts/ai/commit",
		map[string]string{"postId": postID, "finalCaption": "Waves at dusk 🌊"}, &res)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, finalizePostResponse{
		PostID:        postID,
		CaptionStatus: model.CaptionStatusCompleted,
		FinalCaption:  "Waves at dusk 🌊",
	}, res)

	code = f.do(t, http.MethodPost, "/api/posts/ai/commit",
		map[string]string{"post_id": postID, "final_caption": "Edited once more"}, &res)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Edited once more", res.FinalCaption)
}

func TestFinalizePost_BadRequests(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed", `{"postId":`, http.StatusBadRequest},
		{"unknown field", map[string]string{"postId": "p", "finalCaption": "x", "extra": "y"}, http.StatusBadRequest},
		{"missing caption", map[string]string{"postId": "p"}, http.StatusBadRequest},
		{"unknown post", map[string]string{"postId": "0b7c6a3e-0000-4000-8000-000000000000", "finalCaption": "x"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			assert.Equal(t, tt.want, f.do(t, http.MethodPost, "/api/posts/ai/commit", tt.body, &body))
		})
	}
}
