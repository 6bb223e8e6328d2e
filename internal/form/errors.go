package form

import (
	"errors"
	"fmt"
)

var (
	ErrNoFunction = errors.New("no function selected")
	ErrNoFile     = errors.New("no image attached")
)

// ValidationError is reported before any request is sent. The caller shows
// its message as the alert.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// RequestError is a failed transform request. Status is 0 when no response
// was received.
type RequestError struct {
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%d: Something went wrong", e.Status)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func statusOf(err error) int {
	var coded interface{ HTTPStatus() int }
	if errors.As(err, &coded) {
		return coded.HTTPStatus()
	}
	return 0
}

// Alert returns the text a user sees for err.
func Alert(err error) string {
	if err == nil {
		return ""
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Error()
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Error()
	}
	return "Something went wrong"
}
