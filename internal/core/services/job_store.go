package services

import (
	"sort"
	"sync"
	"time"

	"github.com/manthysbr/curunir/internal/core/domain"
)

// JobStore is the thread-safe in-memory ledger of job records. It is the
// single source of truth: callers work on snapshots and write them back
// through Update, so no partial-update state is ever observable. The
// lock is held only for map reads/writes, never across I/O.
type JobStore struct {
	mu   sync.Mutex
	jobs map[domain.JobID]*domain.Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[domain.JobID]*domain.Job)}
}

// Create allocates a fresh pending job and inserts it.
func (s *JobStore) Create(miniAppID string, input map[string]any, variant int, options map[string]any) *domain.Job {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        domain.NewJobID(),
		MiniAppID: miniAppID,
		Status:    domain.JobStatusPending,
		Input:     input,
		Variant:   variant,
		Options:   options,
		Logs:      []string{},
		Artifacts: []domain.Artifact{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return job.Clone()
}

// Get returns a snapshot of the job, or false when absent.
func (s *JobStore) Get(id domain.JobID) (*domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Update overwrites the stored record by ID. Unknown IDs are a no-op.
// Once a record is terminal its status never changes again: an update
// that would move it out of a terminal state is dropped entirely.
func (s *JobStore) Update(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[job.ID]
	if !ok {
		return
	}
	if existing.Status.Terminal() && job.Status != existing.Status {
		return
	}
	s.jobs[job.ID] = job.Clone()
}

// List returns snapshots of all jobs, newest-created first, optionally
// filtered by mini app ID.
func (s *JobStore) List(miniAppID string) []*domain.Job {
	s.mu.Lock()
	jobs := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if miniAppID != "" && job.MiniAppID != miniAppID {
			continue
		}
		jobs = append(jobs, job.Clone())
	}
	s.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Delete removes the job, reporting whether it existed.
func (s *JobStore) Delete(id domain.JobID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; ok {
		delete(s.jobs, id)
		return true
	}
	return false
}

// CleanupOlderThan removes jobs created before the age cutoff and
// returns the count removed. Running jobs are never evicted regardless
// of age: deleting them would orphan an active execution's bookkeeping.
func (s *JobStore) CleanupOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if job.Status == domain.JobStatusRunning {
			continue
		}
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
