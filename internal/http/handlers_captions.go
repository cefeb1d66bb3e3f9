package httpx

import (
	"net/http"

	"github.com/target/caption-pipeline/internal/domain/model"
	"github.com/target/caption-pipeline/internal/service"
)

// CaptionHandlers serves job submission and polling.
type CaptionHandlers struct {
	Svc *service.CaptionService
}

// createAiPostResponse is returned by CreateAiPost. JobID is empty for photos.
type createAiPostResponse struct {
	PostID        string              `json:"post_id"`
	JobID         string              `json:"job_id,omitempty"`
	CaptionStatus model.CaptionStatus `json:"caption_status"`
}

// initCaptionJobBody is the body of POST /api/posts/{post_id}/captions.
type initCaptionJobBody struct {
	MediaURL string `json:"media_url,omitempty"`
	Mood     string `json:"mood,omitempty"`
	Language string `json:"language,omitempty"`
}

// finalizePostBody accepts the web client's camelCase keys as well as snake_case.
type finalizePostBody struct {
	PostID            string `json:"post_id"`
	PostIDCamel       string `json:"postId"`
	FinalCaption      string `json:"final_caption"`
	FinalCaptionCamel string `json:"finalCaption"`
}

// finalizePostResponse is returned by FinalizePost.
type finalizePostResponse struct {
	PostID        string              `json:"post_id"`
	CaptionStatus model.CaptionStatus `json:"caption_status"`
	FinalCaption  string              `json:"final_caption"`
}

// CreateAiPost creates a post and, for videos, starts its caption job.
func (h *CaptionHandlers) CreateAiPost(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePostRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.CreateAiPost(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, createAiPostResponse{
		PostID:        res.Post.ID,
		JobID:         res.JobID,
		CaptionStatus: res.Post.CaptionStatus,
	})
}

// InitCaptionJob starts a caption job for an existing post.
func (h *CaptionHandlers) InitCaptionJob(w http.ResponseWriter, r *http.Request) {
	var body initCaptionJobBody
	if r.ContentLength != 0 && !DecodeJSON(w, r, &body) {
		return
	}

	res, err := h.Svc.InitCaptionJob(r.Context(), model.InitCaptionJobRequest{
		PostID:   r.PathValue("post_id"),
		MediaURL: body.MediaURL,
		Mood:     body.Mood,
		Language: body.Language,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, res)
}

// FinalizePost commits the caption the user accepted or edited.
func (h *CaptionHandlers) FinalizePost(w http.ResponseWriter, r *http.Request) {
	var body finalizePostBody
	if !DecodeJSON(w, r, &body) {
		return
	}

	finalCaption := body.FinalCaption
	if finalCaption == "" {
		finalCaption = body.FinalCaptionCamel
	}
	post, err := h.Svc.FinalizePost(r.Context(), model.FinalizePostRequest{
		PostID:       firstNonEmpty(body.PostID, body.PostIDCamel),
		FinalCaption: finalCaption,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := finalizePostResponse{PostID: post.ID, CaptionStatus: post.CaptionStatus}
	if post.FinalCaption != nil {
		resp.FinalCaption = *post.FinalCaption
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetJobStatus reports the registry view of a job.
func (h *CaptionHandlers) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.GetJobStatus(r.Context(), r.PathValue("job_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// GetCaptionStatus reports the durable caption state of a post.
func (h *CaptionHandlers) GetCaptionStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.GetCaptionStatus(r.Context(), r.PathValue("post_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// Stats reports post counts per caption status.
func (h *CaptionHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.CaptionStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
