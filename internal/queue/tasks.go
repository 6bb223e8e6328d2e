package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeStylizeImage = "image:stylize"

type StylizeImagePayload struct {
	JobID       string            `json:"job_id"`
	Function    string            `json:"function"`
	Options     map[string]string `json:"options,omitempty"`
	SourceKey   string            `json:"source_key"`
	OutputKey   string            `json:"output_key"`
	WebhookURL  string            `json:"webhook_url,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
}

func NewStylizeImageTask(payload StylizeImagePayload) (*asynq.Task, error) {
	if payload.JobID == "" {
		return nil, errors.New("stylize payload requires job_id")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal stylize payload: %w", err)
	}
	return asynq.NewTask(TypeStylizeImage, body), nil
}

func ParseStylizeImagePayload(task *asynq.Task) (StylizeImagePayload, error) {
	var payload StylizeImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return StylizeImagePayload{}, fmt.Errorf("unmarshal stylize payload: %w", err)
	}
	return payload, nil
}
