package store

import "github.com/dunamismax/stylize/internal/domain"

type JobStore interface {
	Create(job domain.Job)
	Get(id string) (domain.Job, bool)
	Update(id string, fn func(*domain.Job)) (domain.Job, error)
}
