package scheduler

import (
	"sync"
	"time"
)

// JobStatus is one job's most recent lifecycle snapshot.
type JobStatus struct {
	Running      bool       `json:"running"`
	LastStarted  *time.Time `json:"last_started,omitempty"`
	LastFinished *time.Time `json:"last_finished,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	LastDetail   string     `json:"last_detail,omitempty"`
}

// Tracker records job lifecycles for the status endpoint.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]JobStatus
}

// NewTracker creates a new instance of Tracker
func NewTracker() *Tracker {
	return &Tracker{jobs: map[string]JobStatus{}}
}

// Begin marks a job as running.
func (t *Tracker) Begin(job string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	status := t.jobs[job]
	status.Running = true
	status.LastStarted = &now
	t.jobs[job] = status
}

// Progress updates a running job's detail line.
func (t *Tracker) Progress(job, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	status := t.jobs[job]
	status.LastDetail = detail
	t.jobs[job] = status
}

// Finish marks a job as done, recording its outcome.
func (t *Tracker) Finish(job, detail string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	status := t.jobs[job]
	status.Running = false
	status.LastFinished = &now
	status.LastDetail = detail
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.LastError = ""
	}
	t.jobs[job] = status
}

// Snapshot returns a copy of every job's status.
func (t *Tracker) Snapshot() map[string]JobStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]JobStatus, len(t.jobs))
	for name, status := range t.jobs {
		out[name] = status
	}
	return out
}
