package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/target/caption-pipeline/config"
	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/data"
	"github.com/target/caption-pipeline/internal/data/database"
	"github.com/target/caption-pipeline/internal/domain/model"
	"github.com/target/caption-pipeline/internal/service"
	"github.com/target/caption-pipeline/internal/service/registry"
	"github.com/target/caption-pipeline/internal/testutil"
)

const testSecret = "worker-secret"

type stubQueue struct {
	mu   sync.Mutex
	msgs []model.CaptionJobMessage
	err  error
}

func (q *stubQueue) Enqueue(_ context.Context, msg model.CaptionJobMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *stubQueue) last() model.CaptionJobMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.msgs[len(q.msgs)-1]
}

type stubHealth struct{ err error }

func (s stubHealth) Health(context.Context) error { return s.err }

type apiFixture struct {
	handler http.Handler
	repo    *data.PostRepo
	queue   *stubQueue
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db := testutil.SetupSQLite(t)
	repo := data.NewPostRepo(db, data.PostRepoConfig{Dialect: database.SQLite})
	reg := registry.NewMemory(registry.MemoryConfig{Capacity: 100})
	queue := &stubQueue{}
	ports := service.CaptionPorts{Posts: repo, Registry: reg, Queue: queue}
	logger := slog.New(slog.DiscardHandler)

	captions := service.MustNewCaptionService(service.CaptionServiceOptions{
		Ports: ports,
		Config: config.CaptionConfig{
			CallbackBaseURL: "http://captiond.internal",
			CallbackPath:    DefaultCallbackPath,
			EnqueueTimeout:  time.Second,
		},
		Logger: logger,
	})
	callbacks := service.MustNewCaptionCallbackService(service.CaptionCallbackServiceOptions{
		Ports:  ports,
		Secret: testSecret,
		Logger: logger,
	})

	return &apiFixture{
		handler: NewRouter(RouterServices{
			Captions:     captions,
			Callbacks:    callbacks,
			Health:       map[string]core.HealthChecker{"db": repo},
			Logger:       logger,
			CallbackPath: "/internal/captions/callback",
			MaxBodyBytes: 4096,
		}),
		repo:  repo,
		queue: queue,
	}
}

// do sends body (marshalled unless it is already a string) and decodes the JSON reply into out.
func (f *apiFixture) do(t *testing.T, method, path string, body any, out any, headers ...string) int {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (f *apiFixture) createVideoWithJob(t *testing.T) (postID, jobID string) {
	t.Helper()
	var resp createAiPostResponse
	code := f.do(t, http.MethodPost, "/api/posts/ai/init", map[string]string{
		"media_type": "VIDEO",
		"media_url":  "https://cdn.example.com/v.mp4",
		"mood":       "chill",
	}, &resp)
	require.Equal(t, http.StatusAccepted, code)
	require.NotEmpty(t, resp.JobID)
	return resp.PostID, resp.JobID
}

var errBoom = errors.New("boom")
