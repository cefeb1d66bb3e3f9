package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/target/caption-pipeline/config"
	"github.com/target/caption-pipeline/internal/data"
	"github.com/target/caption-pipeline/internal/data/database"
	"github.com/target/caption-pipeline/internal/domain/model"
	"github.com/target/caption-pipeline/internal/observability/notify"
	"github.com/target/caption-pipeline/internal/service/registry"
	"github.com/target/caption-pipeline/internal/testutil"
)

const testCallbackSecret = "s3cret"

// fakeQueue records enqueued messages; err makes every enqueue fail.
type fakeQueue struct {
	mu    sync.Mutex
	msgs  []model.CaptionJobMessage
	err   error
	block bool
}

func (q *fakeQueue) Enqueue(ctx context.Context, msg model.CaptionJobMessage) error {
	if q.block {
		<-ctx.Done()
		return ctx.Err()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *fakeQueue) messages() []model.CaptionJobMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.CaptionJobMessage(nil), q.msgs...)
}

// captureNotifier records failure payloads synchronously.
type captureNotifier struct {
	mu       sync.Mutex
	payloads []notify.CaptionFailurePayload
}

func (n *captureNotifier) NotifyAsync(_ context.Context, payload notify.CaptionFailurePayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
}

func (n *captureNotifier) stages() []notify.Stage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Stage, 0, len(n.payloads))
	for _, p := range n.payloads {
		out = append(out, p.Stage)
	}
	return out
}

// recordingSink captures statsd calls.
type recordingSink struct {
	mu     sync.Mutex
	counts []metricCall
	gauges []metricCall
}

type metricCall struct {
	name  string
	value float64
	tags  map[string]string
}

func (s *recordingSink) Count(name string, value int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = append(s.counts, metricCall{name: name, value: float64(value), tags: tags})
}

func (s *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges = append(s.gauges, metricCall{name: name, value: value, tags: tags})
}

func (s *recordingSink) Timing(string, time.Duration, map[string]string) {}

func (s *recordingSink) countsNamed(name string) []metricCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []metricCall
	for _, c := range s.counts {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (s *recordingSink) gauge(name, tagKey, tagValue string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.gauges) - 1; i >= 0; i-- {
		g := s.gauges[i]
		if g.name == name && g.tags[tagKey] == tagValue {
			return g.value, true
		}
	}
	return 0, false
}

// pipeline wires the caption services over in-memory SQLite and the memory registry.
type pipeline struct {
	repo      *data.PostRepo
	clock     *data.FixedTimeProvider
	registry  *registry.Memory
	queue     *fakeQueue
	notifier  *captureNotifier
	metrics   *recordingSink
	captions  *CaptionService
	callbacks *CaptionCallbackService
	reaper    *ReaperService

	mu     sync.Mutex
	jobIDs []string
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	db := testutil.SetupSQLite(t)
	clock := data.NewFixedTimeProvider(testutil.TestTime())

	p := &pipeline{
		repo:     data.NewPostRepo(db, data.PostRepoConfig{Dialect: database.SQLite, TimeProvider: clock}),
		clock:    clock,
		registry: registry.NewMemory(registry.MemoryConfig{Capacity: 100, TTL: time.Hour}),
		queue:    &fakeQueue{},
		notifier: &captureNotifier{},
		metrics:  &recordingSink{},
	}
	ports := CaptionPorts{Posts: p.repo, Registry: p.registry, Queue: p.queue}

	p.captions = MustNewCaptionService(CaptionServiceOptions{
		Ports: ports,
		Config: config.CaptionConfig{
			CallbackBaseURL: "https://api.example.com",
			CallbackPath:    "/api/ai/callback/captions",
			QueueBackend:    config.QueueBackendRedis,
			EnqueueTimeout:  time.Second,
		},
		Metrics:  p.metrics,
		Notifier: p.notifier,
		NewJobID: p.nextJobID,
	})
	p.callbacks = MustNewCaptionCallbackService(CaptionCallbackServiceOptions{
		Ports:    ports,
		Secret:   testCallbackSecret,
		Metrics:  p.metrics,
		Notifier: p.notifier,
	})
	p.reaper = MustNewReaperService(ReaperServiceOptions{
		Ports: ports,
		Config: config.ReaperConfig{
			Interval:             time.Minute,
			CaptionPendingMaxAge: 30 * time.Minute,
			BatchSize:            2,
		},
		Metrics:  p.metrics,
		Notifier: p.notifier,
	})
	return p
}

func (p *pipeline) nextJobID() string {
	id := uuid.NewString()
	p.mu.Lock()
	p.jobIDs = append(p.jobIDs, id)
	p.mu.Unlock()
	return id
}

func (p *pipeline) lastJobID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.jobIDs) == 0 {
		return ""
	}
	return p.jobIDs[len(p.jobIDs)-1]
}

func (p *pipeline) createVideo(t *testing.T) *model.Post {
	t.Helper()
	return testutil.MustCreatePost(t, p.repo, nil)
}

func (p *pipeline) startJob(t *testing.T, postID string) string {
	t.Helper()
	res, err := p.captions.InitCaptionJob(context.Background(), model.InitCaptionJobRequest{PostID: postID})
	if err != nil {
		t.Fatalf("init caption job: %v", err)
	}
	return res.JobID
}

func (p *pipeline) report(t *testing.T, result *model.CaptionResult) *model.CallbackAck {
	t.Helper()
	ack, err := p.callbacks.ReceiveCaptionResult(context.Background(), *result, testCallbackSecret)
	if err != nil {
		t.Fatalf("receive caption result: %v", err)
	}
	return ack
}

func (p *pipeline) post(t *testing.T, id string) *model.Post {
	t.Helper()
	post, err := p.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	return post
}
