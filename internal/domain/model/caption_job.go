package model

import (
	"errors"
	"strings"
	"time"
)

// JobStatus is the registry-side state of a caption job.
type JobStatus string

const (
	// JobStatusPending indicates the job was enqueued and no callback has been applied.
	JobStatusPending JobStatus = "PENDING"
	// JobStatusCompleted indicates the worker produced a caption.
	JobStatusCompleted JobStatus = "COMPLETED"
	// JobStatusFailed indicates the worker reported a failure or enqueue failed.
	JobStatusFailed JobStatus = "FAILED"
)

// ErrEmptyCaption is reported when a worker claims success without a caption.
var ErrEmptyCaption = errors.New("worker reported success without a caption")

// Valid returns true if the JobStatus is known.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusCompleted || s == JobStatusFailed
}

// Terminal returns true for COMPLETED and FAILED.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CaptionStatus maps a terminal job status onto the post status it produces.
func (s JobStatus) CaptionStatus() CaptionStatus {
	switch s {
	case JobStatusCompleted:
		return CaptionStatusCompleted
	case JobStatusFailed:
		return CaptionStatusFailed
	default:
		return CaptionStatusPending
	}
}

// CaptionJob is the registry entry for one worker round trip.
type CaptionJob struct {
	ID        string    `json:"job_id"`
	PostID    string    `json:"post_id"`
	Status    JobStatus `json:"status"`
	Caption   *string   `json:"caption,omitempty"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCaptionJob returns a PENDING job created at now.
func NewCaptionJob(jobID, postID string, now time.Time) CaptionJob {
	return CaptionJob{
		ID:        jobID,
		PostID:    postID,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply moves a PENDING job to the outcome's terminal state.
// It returns false when the job was already terminal; terminal jobs are never rewritten.
func (j *CaptionJob) Apply(outcome CaptionOutcome, now time.Time) bool {
	if j.Status.Terminal() {
		return false
	}
	j.Status = outcome.Status
	j.Caption = nil
	j.Error = nil
	switch outcome.Status {
	case JobStatusCompleted:
		caption := outcome.Caption
		j.Caption = &caption
	case JobStatusFailed:
		msg := outcome.Error
		j.Error = &msg
	}
	j.UpdatedAt = now
	return true
}

// View returns the polling representation of the job.
func (j CaptionJob) View() JobStatusView {
	return JobStatusView{
		JobID:   j.ID,
		Status:  j.Status,
		Caption: j.Caption,
		Error:   j.Error,
	}
}

// JobStatusView is returned by the job polling endpoint.
type JobStatusView struct {
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Caption *string   `json:"caption,omitempty"`
	Error   *string   `json:"error,omitempty"`
}

// CaptionOutcome is a normalized terminal result for a job.
type CaptionOutcome struct {
	Status  JobStatus
	Caption string
	Error   string
}

// CompletedOutcome builds a successful outcome.
func CompletedOutcome(caption string) CaptionOutcome {
	return CaptionOutcome{Status: JobStatusCompleted, Caption: caption}
}

// FailedOutcome builds a failed outcome.
func FailedOutcome(reason string) CaptionOutcome {
	return CaptionOutcome{Status: JobStatusFailed, Error: reason}
}

// Matches reports whether the post already reflects this outcome.
func (o CaptionOutcome) Matches(p *Post) bool {
	if p == nil || p.CaptionStatus != o.Status.CaptionStatus() {
		return false
	}
	if o.Status == JobStatusCompleted {
		return p.GeneratedCaption != nil && *p.GeneratedCaption == o.Caption
	}
	return p.GeneratedCaption == nil
}

// CaptionJobMessage is the queue payload consumed by the caption worker.
type CaptionJobMessage struct {
	JobID       string `json:"job_id"`
	PostID      string `json:"post_id"`
	VideoURL    string `json:"video_url"`
	Mood        string `json:"mood"`
	CallbackURL string `json:"callback_url"`
	Timestamp   int64  `json:"timestamp"`
	Language    string `json:"language,omitempty"`
}

// InitCaptionJobRequest starts captioning for an existing post.
type InitCaptionJobRequest struct {
	PostID   string `json:"post_id"`
	MediaURL string `json:"media_url,omitempty"`
	Mood     string `json:"mood,omitempty"`
	Language string `json:"language,omitempty"`
}

// Normalize trims inputs. An empty mood stays empty so the post's stored mood applies.
func (r *InitCaptionJobRequest) Normalize() {
	r.PostID = strings.TrimSpace(r.PostID)
	r.MediaURL = strings.TrimSpace(r.MediaURL)
	r.Mood = strings.ToLower(strings.TrimSpace(r.Mood))
	r.Language = strings.TrimSpace(r.Language)
}

// Validate validates the InitCaptionJobRequest fields.
func (r *InitCaptionJobRequest) Validate() error {
	if r.PostID == "" {
		return errors.New("post_id is required")
	}
	if r.MediaURL != "" {
		if err := ValidateMediaURL(r.MediaURL); err != nil {
			return err
		}
	}
	if err := ValidateMood(r.Mood); err != nil {
		return err
	}
	return ValidateLanguage(r.Language)
}

// CaptionResult is the worker's report for one job.
type CaptionResult struct {
	JobID        string
	PostID       string
	Success      bool
	Caption      *string
	ErrorMessage *string
}

// Validate validates the identifiers on the result.
func (r *CaptionResult) Validate() error {
	if strings.TrimSpace(r.JobID) == "" {
		return errors.New("job_id is required")
	}
	if strings.TrimSpace(r.PostID) == "" {
		return errors.New("post_id is required")
	}
	return nil
}

// Outcome normalizes the worker report. A success without caption text becomes a failure.
func (r *CaptionResult) Outcome() CaptionOutcome {
	if r.Success {
		if r.Caption != nil {
			if caption := strings.TrimSpace(*r.Caption); caption != "" {
				return CompletedOutcome(caption)
			}
		}
		return FailedOutcome(ErrEmptyCaption.Error())
	}
	reason := "caption worker reported failure"
	if r.ErrorMessage != nil {
		if msg := strings.TrimSpace(*r.ErrorMessage); msg != "" {
			reason = msg
		}
	}
	return FailedOutcome(reason)
}

// CallbackAck is returned to the worker. Success=false means "do not retry".
type CallbackAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
