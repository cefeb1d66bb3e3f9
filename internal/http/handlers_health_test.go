package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/caption-pipeline/internal/core"
)

func TestHealthz_AllHealthy(t *testing.T) {
	h := &HealthHandlers{Checks: map[string]core.HealthChecker{
		"db":    stubHealth{},
		"redis": stubHealth{},
	}}

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","checks":{"db":"ok","redis":"ok"}}`, rec.Body.String())
}

func TestHealthz_DependencyDown(t *testing.T) {
	h := &HealthHandlers{Checks: map[string]core.HealthChecker{
		"db":    stubHealth{},
		"redis": stubHealth{err: errBoom},
	}}

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","checks":{"db":"ok","redis":"boom"}}`, rec.Body.String())
}

func TestHealthz_HEAD(t *testing.T) {
	h := &HealthHandlers{}

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestHealthz_ThroughRouter(t *testing.T) {
	f := newAPIFixture(t)

	var body healthResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil, &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["db"])
}
