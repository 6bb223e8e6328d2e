package id

import "github.com/google/uuid"

// New returns a random identifier for jobs, sessions and results.
func New() string {
	return uuid.NewString()
}

func Valid(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}
