// Package jobs tracks the extractions of one CLI invocation: which files
// are in flight, which have finished, and how each one ended.
package jobs

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job is one file's extraction.
type Job struct {
	Key string
	// TraceID tags every log line of the job so interleaved output from
	// concurrent files can be told apart.
	TraceID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Points     int
	Err        error
}

// Manager records jobs by key, normally the cleaned absolute path of the
// input file.
type Manager struct {
	log      *slog.Logger
	mu       sync.RWMutex
	active   map[string]*Job
	finished []*Job
}

// NewManager creates a new job manager. If log is nil, slog.Default() is used.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:    log.With("component", "jobs"),
		active: make(map[string]*Job),
	}
}

// Start registers a job for key. Returns the job and true if started, or
// nil and false if key is already in flight or has finished.
func (m *Manager) Start(key string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[key]; ok || m.finishedLocked(key) != nil {
		m.log.Warn("file already queued, skipping duplicate", "file", key)
		return nil, false
	}

	j := &Job{
		Key:       key,
		TraceID:   uuid.New().String(),
		StartedAt: time.Now(),
	}
	m.active[key] = j
	m.log.Debug("job started", "file", key, "trace", j.TraceID)
	return j, true
}

// Finish records the outcome of key's job. Unknown keys are ignored.
func (m *Manager) Finish(key string, points int, err error) {
	m.mu.Lock()
	j, ok := m.active[key]
	if ok {
		delete(m.active, key)
		j.FinishedAt = time.Now()
		j.Points = points
		j.Err = err
		m.finished = append(m.finished, j)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	if err != nil {
		m.log.Debug("job failed", "file", key, "error", err)
		return
	}
	m.log.Debug("job finished", "file", key, "points", points,
		"elapsed", j.FinishedAt.Sub(j.StartedAt))
}

// Active returns the jobs still in flight ordered by key.
func (m *Manager) Active() []*Job {
	m.mu.RLock()
	jobs := make([]*Job, 0, len(m.active))
	for _, j := range m.active {
		jobs = append(jobs, j)
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool { return jobs[a].Key < jobs[b].Key })
	return jobs
}

// Finished returns the finished jobs ordered by key.
func (m *Manager) Finished() []*Job {
	m.mu.RLock()
	jobs := append([]*Job(nil), m.finished...)
	m.mu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool { return jobs[a].Key < jobs[b].Key })
	return jobs
}

// Failed reports how many finished jobs ended in error.
func (m *Manager) Failed() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, j := range m.finished {
		if j.Err != nil {
			n++
		}
	}
	return n
}

func (m *Manager) finishedLocked(key string) *Job {
	for _, j := range m.finished {
		if j.Key == key {
			return j
		}
	}
	return nil
}
