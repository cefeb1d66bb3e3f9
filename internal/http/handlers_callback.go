package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/target/caption-pipeline/internal/domain/model"
	"github.com/target/caption-pipeline/internal/service"
)

// CallbackSecretHeader carries the worker secret when it is not in the body.
const CallbackSecretHeader = "X-AI-SECRET"

// CallbackHandlers serves the worker webhook.
type CallbackHandlers struct {
	Svc *service.CaptionCallbackService
}

// errMissingOutcome rejects reports that carry neither success nor status.
var errMissingOutcome = errors.New("success or status is required")

// captionCallbackPayload accepts both snake_case and the worker's camelCase keys. The
// outcome arrives either as a success flag or as status COMPLETED/FAILED.
type captionCallbackPayload struct {
	JobID             string  `json:"job_id"`
	JobIDCamel        string  `json:"jobId"`
	PostID            string  `json:"post_id"`
	PostIDCamel       string  `json:"postId"`
	Success           *bool   `json:"success"`
	Status            string  `json:"status"`
	Caption           *string `json:"caption"`
	ErrorMessage      *string `json:"error_message"`
	ErrorMessageCamel *string `json:"errorMessage"`
	Error             *string `json:"error"`
	Secret            string  `json:"secret"`
}

func (p *captionCallbackPayload) success() (bool, error) {
	if p.Success != nil {
		return *p.Success, nil
	}
	switch model.JobStatus(strings.ToUpper(strings.TrimSpace(p.Status))) {
	case model.JobStatusCompleted:
		return true, nil
	case model.JobStatusFailed:
		return false, nil
	case "":
		return false, errMissingOutcome
	}
	return false, errors.New("status must be COMPLETED or FAILED")
}

func (p *captionCallbackPayload) result() (model.CaptionResult, error) {
	ok, err := p.success()
	if err != nil {
		return model.CaptionResult{}, err
	}
	res := model.CaptionResult{
		JobID:        firstNonEmpty(p.JobID, p.JobIDCamel),
		PostID:       firstNonEmpty(p.PostID, p.PostIDCamel),
		Success:      ok,
		Caption:      p.Caption,
		ErrorMessage: p.ErrorMessage,
	}
	if res.ErrorMessage == nil {
		res.ErrorMessage = p.ErrorMessageCamel
	}
	if res.ErrorMessage == nil {
		res.ErrorMessage = p.Error
	}
	return res, nil
}

// ReceiveCaptionResult applies a worker report. The body is always {success, message}.
func (h *CallbackHandlers) ReceiveCaptionResult(w http.ResponseWriter, r *http.Request) {
	var payload captionCallbackPayload
	if err := decodeBody(r, &payload, false); err != nil {
		WriteJSON(w, http.StatusBadRequest, model.CallbackAck{Success: false, Message: "invalid JSON: " + err.Error()})
		return
	}

	secret := payload.Secret
	if secret == "" {
		secret = r.Header.Get(CallbackSecretHeader)
	}

	result, err := payload.result()
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, model.CallbackAck{Success: false, Message: err.Error()})
		return
	}

	ack, err := h.Svc.ReceiveCaptionResult(r.Context(), result, secret)
	if err != nil {
		status, _ := statusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = errInternal.Error()
		}
		WriteJSON(w, status, model.CallbackAck{Success: false, Message: msg})
		return
	}
	WriteJSON(w, http.StatusOK, ack)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
