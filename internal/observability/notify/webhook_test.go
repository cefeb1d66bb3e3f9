package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if calls.Add(1) < 3 {
			http.Error(w, "try later", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), JSONPost{
		Client:  srv.Client(),
		URL:     srv.URL,
		Body:    []byte(`{}`),
		Retries: 2,
		Service: "test sink",
		Backoff: time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostJSON_ReturnsLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), JSONPost{
		Client:  srv.Client(),
		URL:     srv.URL,
		Body:    []byte(`{}`),
		Service: "test sink",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test sink 403 Forbidden: nope")
}

func TestSinkFunc_Nil(t *testing.T) {
	var f SinkFunc
	assert.NoError(t, f.SendCaptionFailure(context.Background(), CaptionFailurePayload{}))
}
