package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
)

func TestStylizeImageTask(t *testing.T) {
	payload := StylizeImagePayload{
		JobID:       "job-123",
		Function:    "squares",
		Options:     map[string]string{"gif": "false", "block": "12"},
		SourceKey:   "uploads/cat.png",
		OutputKey:   "stylized/job-123/cat-squares.png",
		RequestedAt: time.Now().UTC(),
	}

	task, err := NewStylizeImageTask(payload)
	if err != nil {
		t.Fatalf("NewStylizeImageTask returned error: %v", err)
	}
	if task.Type() != TypeStylizeImage {
		t.Fatalf("expected task type %s, got %s", TypeStylizeImage, task.Type())
	}

	parsed, err := ParseStylizeImagePayload(task)
	if err != nil {
		t.Fatalf("ParseStylizeImagePayload returned error: %v", err)
	}
	if parsed.Options["block"] != "12" {
		t.Fatalf("expected block option to survive, got %v", parsed.Options)
	}

	if _, err := NewStylizeImageTask(StylizeImagePayload{}); err == nil {
		t.Fatal("expected error for payload without job_id")
	}

	if _, err := ParseStylizeImagePayload(asynq.NewTask(TypeStylizeImage, []byte("{"))); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
