package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobKind names the index operation a job performs.
type JobKind string

const (
	KindRebuild JobKind = "rebuild"
	KindModify  JobKind = "modify"
	KindDelete  JobKind = "delete"
	KindRename  JobKind = "rename"
)

// JobStatus represents the state of an index job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusRunning    JobStatus = "running"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Job tracks the state of a single index operation.
type Job struct {
	mu sync.Mutex

	ID      string  `json:"job_id"`
	Kind    JobKind `json:"kind"`
	Path    string  `json:"path,omitempty"`
	NewPath string  `json:"new_path,omitempty"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Progress struct {
	Attempts int      `json:"attempts"`
	Entries  int      `json:"entries"`
	Errors   []string `json:"errors"`
}

// NewJob returns a queued job with a time-ordered ID.
func NewJob(kind JobKind, path, newPath string) *Job {
	now := time.Now()
	return &Job{
		ID:        newJobID(),
		Kind:      kind,
		Path:      path,
		NewPath:   newPath,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// JobStore keeps jobs in memory until they have been idle for the TTL.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{jobs: map[string]*Job{}, ttl: ttl}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup drops jobs idle for longer than the TTL.
func (s *JobStore) Cleanup() {
	cutoff := time.Now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		job.mu.Lock()
		idle := job.UpdatedAt.Before(cutoff)
		job.mu.Unlock()
		if idle {
			delete(s.jobs, id)
		}
	}
}

// update applies fn under the job lock and bumps UpdatedAt.
func (j *Job) update(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn()
	j.UpdatedAt = time.Now()
}

func (j *Job) SetStatus(status JobStatus, phase string) {
	j.update(func() {
		j.Status = status
		j.Phase = phase
	})
}

func (j *Job) AddError(msg string) {
	j.update(func() { j.Progress.Errors = append(j.Progress.Errors, msg) })
}

// IncrAttempts counts one more run of the job's operation.
func (j *Job) IncrAttempts() {
	j.update(func() { j.Progress.Attempts++ })
}

// SetEntries records how many index entries the operation produced.
func (j *Job) SetEntries(n int) {
	j.update(func() { j.Progress.Entries = n })
}

func (j *Job) setContentHash(h string) {
	j.update(func() { j.ContentHash = h })
}

// JobSnapshot is a copy of a job's state that is safe to encode while
// workers keep updating the job.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Kind        JobKind   `json:"kind"`
	Path        string    `json:"path,omitempty"`
	NewPath     string    `json:"new_path,omitempty"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Progress    Progress  `json:"progress"`
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot copies the job. Progress.Errors is never nil.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress := j.Progress
	progress.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:          j.ID,
		Kind:        j.Kind,
		Path:        j.Path,
		NewPath:     j.NewPath,
		Status:      j.Status,
		Phase:       j.Phase,
		Progress:    progress,
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// Done reports whether the job has reached a final status.
func (s JobSnapshot) Done() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusDupSkipped:
		return true
	}
	return false
}

// ContentHashHex is the hex SHA-256 of data.
func ContentHashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
