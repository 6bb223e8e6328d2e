package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

const defaultTaskTimeout = 3 * time.Minute

type Client struct {
	client  *asynq.Client
	queue   string
	timeout time.Duration
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	return &Client{
		client:  asynq.NewClient(redisOpt),
		queue:   queueName,
		timeout: timeout,
	}
}

// EnqueueStylizeImage schedules one stylize job. Failed jobs are not retried:
// a failed transform is reported, never resent.
func (c *Client) EnqueueStylizeImage(ctx context.Context, payload StylizeImagePayload) (*asynq.TaskInfo, error) {
	task, err := NewStylizeImageTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(0),
		asynq.Timeout(c.timeout),
	)
}

func (c *Client) Close() error {
	return c.client.Close()
}
