// Package model defines the core data types shared by the caption pipeline.
package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// MediaType identifies the kind of media attached to a post.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type MediaType string

// CaptionStatus is the durable caption state recorded on a post.
type CaptionStatus string

const (
	// MediaTypePhoto is a still image post.
	MediaTypePhoto MediaType = "PHOTO"
	// MediaTypeVideo is a video post; only videos are eligible for queued captioning.
	MediaTypeVideo MediaType = "VIDEO"

	// CaptionStatusNone marks a post that never requested a generated caption.
	CaptionStatusNone CaptionStatus = "NONE"
	// CaptionStatusPending marks a post waiting for the worker callback.
	CaptionStatusPending CaptionStatus = "PENDING"
	// CaptionStatusCompleted marks a post whose caption was generated.
	CaptionStatusCompleted CaptionStatus = "COMPLETED"
	// CaptionStatusFailed marks a post whose caption job failed or could not be enqueued.
	CaptionStatusFailed CaptionStatus = "FAILED"
)

const (
	// DefaultMood is used when a caption request does not carry a mood.
	DefaultMood = "neutral"
	// CaptionFailedMessage is the user-facing text reported for failed captions.
	CaptionFailedMessage = "Caption generation failed. Please try again."
	// MaxMediaURLLength bounds the media reference accepted from clients.
	MaxMediaURLLength = 2048
	// MaxFinalCaptionLength bounds a committed caption, in characters.
	MaxFinalCaptionLength = 2000
)

var (
	moodPattern     = regexp.MustCompile(`^[a-zA-Z_-]{0,32}$`)
	languagePattern = regexp.MustCompile(`^[a-zA-Z-_.]*$`)
)

// UnmarshalText implements encoding.TextUnmarshaler and accepts any letter case.
func (m *MediaType) UnmarshalText(text []byte) error {
	mt := MediaType(strings.ToUpper(strings.TrimSpace(string(text))))
	if !mt.Valid() {
		return fmt.Errorf("invalid media type: %q (expected PHOTO or VIDEO)", string(text))
	}
	*m = mt
	return nil
}

// Valid returns true if the MediaType is known.
func (m MediaType) Valid() bool {
	return m == MediaTypePhoto || m == MediaTypeVideo
}

// QueueEligible reports whether posts of this media type can be captioned by the worker.
func (m MediaType) QueueEligible() bool {
	return m == MediaTypeVideo
}

// Valid returns true if the CaptionStatus is known.
func (s CaptionStatus) Valid() bool {
	switch s {
	case CaptionStatusNone, CaptionStatusPending, CaptionStatusCompleted, CaptionStatusFailed:
		return true
	}
	return false
}

// Terminal returns true for COMPLETED and FAILED.
func (s CaptionStatus) Terminal() bool {
	return s == CaptionStatusCompleted || s == CaptionStatusFailed
}

// Post is the durable record a caption job reports into.
type Post struct {
	ID                 string        `json:"post_id"                        db:"id"`
	AuthorID           *string       `json:"author_id,omitempty"            db:"author_id"`
	MediaType          MediaType     `json:"media_type"                     db:"media_type"`
	MediaURL           string        `json:"media_url"                      db:"media_url"`
	Mood               string        `json:"mood"                           db:"mood"`
	GeneratedCaption   *string       `json:"generated_caption,omitempty"    db:"generated_caption"`
	CaptionStatus      CaptionStatus `json:"caption_status"                 db:"caption_status"`
	CurrentJobID       *string       `json:"current_job_id,omitempty"       db:"current_job_id"`
	CaptionError       *string       `json:"-"                              db:"caption_error"`
	CaptionRequestedAt *time.Time    `json:"caption_requested_at,omitempty" db:"caption_requested_at"`
	FinalCaption       *string       `json:"final_caption,omitempty"        db:"final_caption"`
	FinalizedAt        *time.Time    `json:"finalized_at,omitempty"         db:"finalized_at"`
	CreatedAt          time.Time     `json:"created_at"                     db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"                     db:"updated_at"`
}

// IsCurrentJob reports whether jobID is the job the post currently waits on.
func (p *Post) IsCurrentJob(jobID string) bool {
	return p != nil && p.CurrentJobID != nil && *p.CurrentJobID == jobID
}

// CreatePostRequest carries the fields needed to persist a new post.
type CreatePostRequest struct {
	AuthorID  *string   `json:"author_id,omitempty"`
	MediaType MediaType `json:"media_type"`
	MediaURL  string    `json:"media_url"`
	Mood      string    `json:"mood,omitempty"`
}

// Normalize trims inputs and applies defaults.
func (r *CreatePostRequest) Normalize() {
	r.MediaType = MediaType(strings.ToUpper(strings.TrimSpace(string(r.MediaType))))
	r.MediaURL = strings.TrimSpace(r.MediaURL)
	r.Mood = NormalizeMood(r.Mood)
	if r.AuthorID != nil {
		if trimmed := strings.TrimSpace(*r.AuthorID); trimmed != "" {
			r.AuthorID = &trimmed
		} else {
			r.AuthorID = nil
		}
	}
}

// Validate validates the CreatePostRequest fields.
func (r *CreatePostRequest) Validate() error {
	if !r.MediaType.Valid() {
		return errors.New("media_type must be PHOTO or VIDEO")
	}
	if err := ValidateMediaURL(r.MediaURL); err != nil {
		return err
	}
	return ValidateMood(r.Mood)
}

// FinalizePostRequest commits the caption a user accepted or edited.
type FinalizePostRequest struct {
	PostID       string `json:"post_id"`
	FinalCaption string `json:"final_caption"`
}

// Normalize trims inputs.
func (r *FinalizePostRequest) Normalize() {
	r.PostID = strings.TrimSpace(r.PostID)
	r.FinalCaption = strings.TrimSpace(r.FinalCaption)
}

// Validate validates the FinalizePostRequest fields.
func (r *FinalizePostRequest) Validate() error {
	if r.PostID == "" {
		return errors.New("post_id is required")
	}
	if r.FinalCaption == "" {
		return errors.New("final_caption is required")
	}
	if utf8.RuneCountInString(r.FinalCaption) > MaxFinalCaptionLength {
		return fmt.Errorf("final_caption must be at most %d characters", MaxFinalCaptionLength)
	}
	return nil
}

// NormalizeMood lowercases the mood and falls back to DefaultMood.
func NormalizeMood(mood string) string {
	m := strings.ToLower(strings.TrimSpace(mood))
	if m == "" {
		return DefaultMood
	}
	return m
}

// ValidateMood checks the mood tag forwarded to the worker.
func ValidateMood(mood string) error {
	if !moodPattern.MatchString(mood) {
		return errors.New("mood must be at most 32 letters, '-' or '_'")
	}
	return nil
}

// ValidateLanguage checks the optional caption language hint (e.g. "en", "vi", "pt-BR").
func ValidateLanguage(lang string) error {
	if !languagePattern.MatchString(lang) {
		return errors.New("language may only contain letters, '-', '_' and '.'")
	}
	return nil
}

// ValidateMediaURL checks a media reference is present and bounded.
func ValidateMediaURL(mediaURL string) error {
	if strings.TrimSpace(mediaURL) == "" {
		return errors.New("media_url is required")
	}
	if len(mediaURL) > MaxMediaURLLength {
		return fmt.Errorf("media_url must be at most %d characters", MaxMediaURLLength)
	}
	return nil
}

// CaptionStatusView is the polling view of a post's caption state.
type CaptionStatusView struct {
	Status       CaptionStatus `json:"status"`
	HasCaption   bool          `json:"has_caption"`
	Caption      *string       `json:"caption,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"`
}

// NewCaptionStatusView derives the polling view from the durable post record.
func NewCaptionStatusView(p *Post) CaptionStatusView {
	view := CaptionStatusView{
		Status:     p.CaptionStatus,
		HasCaption: p.GeneratedCaption != nil,
		Caption:    p.GeneratedCaption,
	}
	if p.CaptionStatus == CaptionStatusFailed {
		msg := CaptionFailedMessage
		view.ErrorMessage = &msg
	}
	return view
}

// CaptionStats counts posts per caption status.
type CaptionStats struct {
	None      int64 `json:"none"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// StaleCaption identifies a post whose pending job was expired by the reaper.
type StaleCaption struct {
	PostID string
	JobID  string
}
