package store

import (
	"errors"
	"sync"
	"time"

	"github.com/dunamismax/stylize/internal/domain"
)

var ErrJobNotFound = errors.New("job not found")

// MemoryJobStore keeps batch job state for the life of the worker process.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
	now  func() time.Time
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]domain.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryJobStore) Create(job domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	job.UpdatedAt = job.CreatedAt
	s.jobs[job.ID] = job
}

func (s *MemoryJobStore) Get(id string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

func (s *MemoryJobStore) Update(id string, fn func(*domain.Job)) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}

	fn(&job)
	job.UpdatedAt = s.now()
	if job.Done() && job.CompletedAt.IsZero() {
		job.CompletedAt = job.UpdatedAt
	}
	s.jobs[id] = job
	return job, nil
}

// Counts returns the number of jobs per status.
func (s *MemoryJobStore) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int)
	for _, job := range s.jobs {
		out[job.Status]++
	}
	return out
}
