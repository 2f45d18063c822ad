/**
 * Redis Status Tracker
 *
 * Mirrors job lifecycle into Redis sets and hashes so API consumers can poll
 * job state and read results without touching PostgreSQL. Lifecycle changes
 * are also published on a pub/sub channel for event streaming.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/receiptflow/receipt-worker/internal/logging"
)

// StatusTracker records job state transitions in Redis.
type StatusTracker struct {
	client *redis.Client
	queue  string
	log    *logging.Logger
}

// NewStatusTracker connects to Redis and verifies the connection.
func NewStatusTracker(redisURL, queueName string) (*StatusTracker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &StatusTracker{
		client: client,
		queue:  queueName,
		log:    logging.NewLogger("status"),
	}, nil
}

// MarkProcessing moves the job into the processing set.
func (t *StatusTracker) MarkProcessing(ctx context.Context, jobID string) {
	t.client.SAdd(ctx, t.key("processing"), jobID)
	t.publish(ctx, jobID, "processing")
}

// MarkCompleted records the result payload and moves the job to completed.
func (t *StatusTracker) MarkCompleted(ctx context.Context, jobID string, result interface{}) {
	t.client.SRem(ctx, t.key("processing"), jobID)
	t.client.SAdd(ctx, t.key("completed"), jobID)
	if result != nil {
		if data, err := json.Marshal(result); err == nil {
			t.client.HSet(ctx, t.key("results"), jobID, data)
		}
	}
	t.publish(ctx, jobID, "completed")
}

// MarkFailed records the error details and moves the job to failed.
func (t *StatusTracker) MarkFailed(ctx context.Context, jobID string, details interface{}) {
	t.client.SRem(ctx, t.key("processing"), jobID)
	t.client.SAdd(ctx, t.key("failed"), jobID)
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			t.client.HSet(ctx, t.key("errors"), jobID, data)
		}
	}
	t.publish(ctx, jobID, "failed")
}

// GetResult returns the stored result payload for a completed job.
func (t *StatusTracker) GetResult(ctx context.Context, jobID string) ([]byte, error) {
	data, err := t.client.HGet(ctx, t.key("results"), jobID).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("no result for job %s", jobID)
	}
	return data, err
}

// Stats reports set cardinalities for monitoring.
func (t *StatusTracker) Stats(ctx context.Context) (map[string]int64, error) {
	processing, err := t.client.SCard(ctx, t.key("processing")).Result()
	if err != nil {
		return nil, err
	}
	completed, _ := t.client.SCard(ctx, t.key("completed")).Result()
	failed, _ := t.client.SCard(ctx, t.key("failed")).Result()

	return map[string]int64{
		"processing": processing,
		"completed":  completed,
		"failed":     failed,
	}, nil
}

// Close releases the Redis connection.
func (t *StatusTracker) Close() error {
	return t.client.Close()
}

func (t *StatusTracker) key(suffix string) string {
	return fmt.Sprintf("%s:%s", t.queue, suffix)
}

func (t *StatusTracker) publish(ctx context.Context, jobID, status string) {
	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := t.client.Publish(ctx, t.key("events"), data).Err(); err != nil {
		t.log.Warn("failed to publish job event", "jobId", jobID, "status", status, "error", err)
	}
}
