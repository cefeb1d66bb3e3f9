package data

import apperrors "github.com/target/caption-pipeline/internal/errors"

// Shared sentinel errors for data-layer repositories. They are AppErrors so callers outside
// this package can branch on the code without importing it.
var (
	// ErrPostNotFound is returned when a post id has no row.
	ErrPostNotFound = apperrors.NotFound("post not found")
	// ErrPostIDRequired is returned when a lookup is attempted without an id.
	ErrPostIDRequired = apperrors.ValidationField("post_id", "post_id is required")
	// ErrCaptionPending is returned when a caption is committed while a job is still running.
	ErrCaptionPending = apperrors.Conflict("caption job in progress; wait for the result or resubmit")
)
