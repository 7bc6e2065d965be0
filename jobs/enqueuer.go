package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueScore schedules risk scoring for an ingested threat log.
func (c *Client) EnqueueScore(ctx context.Context, logID int64, sourceIP, description string) error {
	task, err := NewThreatScoreTask(ThreatScorePayload{
		LogID:       logID,
		SourceIP:    sourceIP,
		Description: description,
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
