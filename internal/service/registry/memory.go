// Package registry provides the in-process caption job registry.
package registry

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/domain/model"
)

// Defaults applied when MemoryConfig leaves a field zero.
const (
	DefaultCapacity = 10000
	DefaultTTL      = 24 * time.Hour
)

// Memory is an in-memory LRU of caption jobs with per-entry TTL.
// Concurrency: methods are safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	cap    int
	ttl    time.Duration
	ll     *list.List               // front = most-recently used
	items  map[string]*list.Element // job id -> element
	now    func() time.Time         // injectable clock for tests
	hits   atomic.Uint64
	misses atomic.Uint64
	evicts atomic.Uint64
}

type entry struct {
	job    model.CaptionJob
	expiry time.Time // zero means no expiry
}

// MemoryConfig groups constructor options.
type MemoryConfig struct {
	Capacity int
	// TTL bounds how long a job is retained after Create. Negative disables expiry.
	TTL time.Duration
	Now func() time.Time
}

var _ core.JobRegistry = (*Memory)(nil)

// NewMemory creates a Memory registry with the given config.
func NewMemory(cfg MemoryConfig) *Memory {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Memory{
		cap:   capacity,
		ttl:   ttl,
		ll:    list.New(),
		items: make(map[string]*list.Element),
		now:   nowFn,
	}
}

// Create registers job, replacing any previous entry with the same id.
func (m *Memory) Create(_ context.Context, job model.CaptionJob) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, found := m.items[job.ID]; found {
		m.removeElement(el)
	}
	el := m.ll.PushFront(&entry{job: job, expiry: m.expiryFrom(m.now())})
	m.items[job.ID] = el
	m.evictIfNeeded()
	return nil
}

// Get returns a copy of the job or core.ErrJobNotRegistered.
func (m *Memory) Get(_ context.Context, jobID string) (*model.CaptionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.lookup(jobID)
	if !ok {
		return nil, core.ErrJobNotRegistered
	}
	job := ent.job
	return &job, nil
}

// Apply moves a PENDING job to outcome. Terminal jobs are returned unchanged.
// The expiry set by Create is kept.
func (m *Memory) Apply(_ context.Context, jobID string, outcome model.CaptionOutcome) (*model.CaptionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.lookup(jobID)
	if !ok {
		return nil, core.ErrJobNotRegistered
	}
	ent.job.Apply(outcome, m.now())
	job := ent.job
	return &job, nil
}

// Purge drops expired entries and returns how many were removed.
func (m *Memory) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for el := m.ll.Back(); el != nil; {
		prev := el.Prev()
		if ent, ok := el.Value.(*entry); !ok || m.isExpired(ent) {
			m.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Len returns the current number of entries, including expired ones not yet purged.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}

// Stats are simple counters for observability.
type Stats struct {
	Hits, Misses, Evictions uint64
	Size, Capacity          int
}

// Stats returns a snapshot of counters and sizes.
func (m *Memory) Stats() Stats {
	return Stats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Evictions: m.evicts.Load(),
		Size:      m.Len(),
		Capacity:  m.cap,
	}
}

// Helpers (caller must hold m.mu).

func (m *Memory) lookup(jobID string) (*entry, bool) {
	el, found := m.items[jobID]
	if !found {
		m.misses.Add(1)
		return nil, false
	}
	ent, ok := el.Value.(*entry)
	if !ok || m.isExpired(ent) {
		m.removeElement(el)
		m.misses.Add(1)
		return nil, false
	}
	m.ll.MoveToFront(el)
	m.hits.Add(1)
	return ent, true
}

func (m *Memory) expiryFrom(t time.Time) time.Time {
	if m.ttl < 0 {
		return time.Time{}
	}
	return t.Add(m.ttl)
}

func (m *Memory) isExpired(e *entry) bool {
	if e.expiry.IsZero() {
		return false
	}
	return m.now().After(e.expiry)
}

func (m *Memory) removeElement(el *list.Element) {
	m.ll.Remove(el)
	if ent, ok := el.Value.(*entry); ok {
		delete(m.items, ent.job.ID)
	}
}

func (m *Memory) evictIfNeeded() {
	for m.ll.Len() > m.cap {
		el := m.ll.Back()
		if el == nil {
			return
		}
		m.removeElement(el)
		m.evicts.Add(1)
	}
}
