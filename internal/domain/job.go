package domain

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dunamismax/stylize/internal/function"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	DefaultOutputPrefix = "stylized"
)

// EnqueueRequest asks for one source object to be stylized in the background.
type EnqueueRequest struct {
	Function     string            `json:"function" yaml:"function"`
	Options      map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
	SourceKey    string            `json:"source_key" yaml:"source_key"`
	OutputPrefix string            `json:"output_prefix,omitempty" yaml:"output_prefix,omitempty"`
	WebhookURL   string            `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
}

type Job struct {
	ID          string
	Status      string
	Function    function.Function
	SourceKey   string
	OutputKey   string
	WebhookURL  string
	Error       string
	HTTPStatus  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

func (j Job) Done() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}

// Validate checks the function and options the same way the form does, so a
// bad job is refused before it reaches the queue.
func (r EnqueueRequest) Validate() error {
	fn, ok, err := function.Parse(r.Function)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("function is required")
	}
	if strings.TrimSpace(r.SourceKey) == "" {
		return errors.New("source_key is required")
	}
	if strings.HasSuffix(r.SourceKey, "/") {
		return fmt.Errorf("source_key must name an object: %s", r.SourceKey)
	}

	schema := function.SchemaFor(fn)
	inputs, err := function.InputsFor(schema, r.Options)
	if err != nil {
		return err
	}
	if _, err := function.Build(schema, inputs); err != nil {
		return err
	}

	webhook := strings.TrimSpace(r.WebhookURL)
	if webhook != "" && !strings.HasPrefix(webhook, "http://") && !strings.HasPrefix(webhook, "https://") {
		return fmt.Errorf("webhook_url must be http or https: %s", r.WebhookURL)
	}
	return nil
}

// OutputKeyFor places the result next to other results of the same job.
func OutputKeyFor(prefix, jobID string, fn function.Function, sourceKey string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultOutputPrefix
	}
	base := path.Base(sourceKey)
	base = strings.TrimSuffix(base, path.Ext(base))
	return path.Join(prefix, jobID, fmt.Sprintf("%s-%s.png", base, fn))
}
