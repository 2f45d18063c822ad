/**
 * Queue Client - enqueues receipt jobs for background processing
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const enqueueMaxRetry = 3

// Enqueuer submits receipt jobs to the processing queue.
type Enqueuer struct {
	client *asynq.Client
	queue  string
}

// NewEnqueuer creates a queue client for the given Redis instance.
func NewEnqueuer(redisURL, queueName string) (*Enqueuer, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Enqueuer{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}, nil
}

// Enqueue submits a job and returns its ID, generating one when absent.
func (e *Enqueuer) Enqueue(ctx context.Context, job ReceiptJob) (string, error) {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeProcessReceipt, payload)
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(e.queue),
		asynq.MaxRetry(enqueueMaxRetry),
		asynq.Timeout(10*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.JobID, nil
}

// Close releases the underlying Redis connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
