package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/pdfmate/internal/config"
	"github.com/nikhilbhutani/pdfmate/internal/ingestion"
)

const ingestTimeout = 10 * time.Minute

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// Client enqueues ingestion jobs for cmd/worker.
type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Dispatch enqueues job without retries: a failed ingestion is terminal by
// status, so a retry would find the file already FAILED.
func (c *Client) Dispatch(ctx context.Context, job ingestion.Job) error {
	task, err := NewFileIngestTask(job)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(0),
		asynq.Timeout(ingestTimeout),
		asynq.Queue(QueueIngest),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeFileIngest, err)
	}
	return nil
}
