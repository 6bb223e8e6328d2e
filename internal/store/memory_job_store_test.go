package store

import (
	"errors"
	"testing"

	"github.com/dunamismax/stylize/internal/domain"
)

func TestMemoryJobStoreUpdate(t *testing.T) {
	s := NewMemoryJobStore()
	s.Create(domain.Job{ID: "job-1", Status: domain.JobStatusQueued})

	job, err := s.Update("job-1", func(j *domain.Job) {
		j.Status = domain.JobStatusFailed
		j.HTTPStatus = 500
	})
	if err != nil {
		t.Fatalf("update returned error: %v", err)
	}
	if job.CompletedAt.IsZero() {
		t.Fatal("expected completed_at to be set for a finished job")
	}

	if counts := s.Counts(); counts[domain.JobStatusFailed] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}

	if _, err := s.Update("missing", func(*domain.Job) {}); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
