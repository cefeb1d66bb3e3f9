package httpx

import (
	"errors"
	"net/http"

	apperrors "github.com/target/caption-pipeline/internal/errors"
	"github.com/target/caption-pipeline/internal/service"
)

var errInternal = errors.New("internal server error")

// statusFor maps service errors onto an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	if errors.Is(err, service.ErrEnqueueFailed) {
		return http.StatusServiceUnavailable, "enqueue_failed"
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest, "validation"
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound, "not_found"
	case apperrors.ErrCodeConflict:
		return http.StatusConflict, "conflict"
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case apperrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable, "unavailable"
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

// writeServiceError renders err; internal failures are not echoed to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		err = errInternal
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: err})
}

func fieldOf(err error) string {
	return apperrors.GetField(err)
}
