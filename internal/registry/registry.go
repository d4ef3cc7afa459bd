// Package registry provides the authoritative in-memory table of job
// records. It is pure bookkeeping: no I/O, O(1) operations, and it never
// blocks callers beyond a short mutex hold.
package registry

import (
	"sync"

	"github.com/shtefko55/toolsy/internal/models"
)

// Store is the keyed job store. The in-memory implementation below is
// the only backend today; the interface keeps callers independent of it
// so a durable backend can be substituted later.
type Store interface {
	// Create inserts a new job record. The job's ID must be set.
	Create(job *models.Job) error

	// Get returns a snapshot of the job, or models.ErrJobNotFound.
	Get(id string) (*models.Job, error)

	// Update applies fn to the live record under the store lock. Updates
	// against a job already in a terminal state are silently dropped so
	// spurious late adapter callbacks cannot mutate a finished record.
	// Eviction is the one transition allowed out of a terminal state and
	// goes through Delete instead.
	Update(id string, fn func(*models.Job)) error

	// Delete removes the job record. Unknown ids are a no-op.
	Delete(id string)

	// List returns snapshots of all records in unspecified order.
	List() []*models.Job

	// Len returns the number of records.
	Len() int
}

// MemoryStore is the process-lifetime Store implementation backed by a
// mutex-guarded map. All reads hand out clones so callers can never
// mutate a record outside the lock.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*models.Job),
	}
}

// Create inserts a new job record.
func (s *MemoryStore) Create(job *models.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID.String()] = job.Clone()
	return nil
}

// Get returns a snapshot of the job.
func (s *MemoryStore) Get(id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, models.ErrJobNotFound
	}
	return job.Clone(), nil
}

// Update applies fn to the live record under the lock. Terminal states
// are sticky: once a job is completed, failed or evicted no further
// update touches it.
func (s *MemoryStore) Update(id string, fn func(*models.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.ErrJobNotFound
	}
	if job.IsTerminal() {
		return nil
	}
	fn(job)
	return nil
}

// Delete removes the job record. Missing ids are a no-op.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// List returns snapshots of all records.
func (s *MemoryStore) List() []*models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	return jobs
}

// Len returns the number of records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
