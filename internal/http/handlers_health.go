package httpx

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/caption-pipeline/internal/core"
)

const defaultHealthTimeout = 2 * time.Second

// HealthHandlers reports liveness plus connectivity of each dependency.
type HealthHandlers struct {
	Checks  map[string]core.HealthChecker
	Timeout time.Duration
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz pings every dependency concurrently; any failure yields 503.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.Checks))
		g       errgroup.Group
	)
	for name, checker := range h.Checks {
		if checker == nil {
			continue
		}
		g.Go(func() error {
			err := checker.Health(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[name] = err.Error()
			} else {
				results[name] = "ok"
			}
			return err
		})
	}

	resp := healthResponse{Status: "ok", Checks: results}
	code := http.StatusOK
	if err := g.Wait(); err != nil {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		return
	}
	WriteJSON(w, code, resp)
}
