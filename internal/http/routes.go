package httpx

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/service"
)

// DefaultCallbackPath is where workers report results.
const DefaultCallbackPath = "/api/ai/callback/captions"

// RouterServices groups the dependencies of NewRouter.
type RouterServices struct {
	Captions  *service.CaptionService
	Callbacks *service.CaptionCallbackService
	Health    map[string]core.HealthChecker
	Logger    *slog.Logger

	// CallbackPath adds a second mount for the worker webhook when it differs from the default.
	CallbackPath  string
	MaxBodyBytes  int64
	HealthTimeout time.Duration
}

// NewRouter builds the HTTP handler for the caption API.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	if services.Captions != nil {
		registerCaptionRoutes(mux, &CaptionHandlers{Svc: services.Captions})
	}
	if services.Callbacks != nil {
		registerCallbackRoutes(mux, &CallbackHandlers{Svc: services.Callbacks}, services.CallbackPath)
	}

	health := &HealthHandlers{Checks: services.Health, Timeout: services.HealthTimeout}
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("HEAD /healthz", health.Healthz)

	return Chain(mux,
		Recover(logger),
		Logging(logger),
		LimitBody(services.MaxBodyBytes),
	)
}

func registerCaptionRoutes(mux *http.ServeMux, h *CaptionHandlers) {
	mux.HandleFunc("POST /api/posts/ai/init", h.CreateAiPost)
	mux.HandleFunc("POST /api/posts/ai/commit", h.FinalizePost)
	mux.HandleFunc("POST /api/posts/{post_id}/captions", h.InitCaptionJob)
	mux.HandleFunc("GET /api/captions/stats", h.Stats)

	for _, prefix := range []string{"/api", ""} {
		mux.HandleFunc("GET "+prefix+"/caption-jobs/{job_id}", h.GetJobStatus)
		mux.HandleFunc("GET "+prefix+"/posts/{post_id}/caption-status", h.GetCaptionStatus)
	}
}

func registerCallbackRoutes(mux *http.ServeMux, h *CallbackHandlers, extraPath string) {
	mux.HandleFunc("POST "+DefaultCallbackPath, h.ReceiveCaptionResult)
	extraPath = strings.TrimRight(strings.TrimSpace(extraPath), "/")
	if extraPath != "" && extraPath != DefaultCallbackPath && strings.HasPrefix(extraPath, "/") {
		mux.HandleFunc("POST "+extraPath, h.ReceiveCaptionResult)
	}
}
