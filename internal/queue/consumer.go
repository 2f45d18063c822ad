/**
 * Queue Consumer for the Receipt OCR Worker
 *
 * Consumes receipt jobs from Redis via Asynq. Each job carries a classified
 * image source; the handler resolves it, runs the extraction pipeline under a
 * per-job timeout, then persists and mirrors the outcome. Permanent failures
 * (undecodable image, unreadable text) skip Asynq's retry machinery.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	apperrors "github.com/receiptflow/receipt-worker/internal/errors"
	"github.com/receiptflow/receipt-worker/internal/input"
	"github.com/receiptflow/receipt-worker/internal/logging"
	"github.com/receiptflow/receipt-worker/internal/pipeline"
)

// TaskTypeProcessReceipt is the Asynq task type for receipt extraction jobs.
const TaskTypeProcessReceipt = "receipt:process"

// ReceiptJob is the payload of a queued extraction job.
type ReceiptJob struct {
	JobID          string       `json:"jobId"`
	UserID         string       `json:"userId"`
	Filename       string       `json:"filename,omitempty"`
	Source         input.Source `json:"source"`
	EnhanceQuality bool         `json:"enhanceQuality"`
}

// Extractor runs the extraction pipeline over resolved image bytes.
type Extractor interface {
	Process(ctx context.Context, data []byte, enhance bool) *pipeline.ExtractionResult
}

// ResultStore persists extraction outcomes.
type ResultStore interface {
	SaveReceipt(ctx context.Context, job ReceiptJob, result *pipeline.ExtractionResult) (string, error)
	UpdateJobStatus(ctx context.Context, jobID, status string, details map[string]interface{}) error
}

// ConsumerConfig holds consumer configuration and dependencies.
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	ProcessingTimeout time.Duration

	Extractor Extractor
	Fetcher   input.Fetcher
	Store     ResultStore    // optional, nil disables persistence
	Tracker   *StatusTracker // optional, nil disables Redis mirroring
}

// Consumer handles job consumption from the Redis queue.
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	config *ConsumerConfig
	log    *logging.Logger
}

// NewConsumer creates a new queue consumer.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("Extractor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, capped at 60s.
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, payload=%s, error=%v",
					task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	consumer := &Consumer{
		server: server,
		mux:    mux,
		config: cfg,
		log:    logging.NewLogger("consumer"),
	}
	mux.HandleFunc(TaskTypeProcessReceipt, consumer.handleProcessReceipt)

	return consumer, nil
}

// Start begins consuming jobs in the background.
func (c *Consumer) Start() error {
	c.log.Info("Starting queue consumer",
		"concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.log.Error("queue consumer stopped", "error", err)
		}
	}()
	return nil
}

// Stop shuts the consumer down gracefully.
func (c *Consumer) Stop() {
	c.log.Info("Stopping queue consumer")
	c.server.Shutdown()
}

func (c *Consumer) handleProcessReceipt(ctx context.Context, task *asynq.Task) error {
	start := time.Now()

	var job ReceiptJob
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job payload: %v: %w", err, asynq.SkipRetry)
	}

	jobLog := c.log.Job(job.JobID)
	jobLog.Info("Processing receipt",
		"filename", job.Filename, "source", job.Source.Kind, "user", job.UserID)

	c.markProcessing(ctx, job)

	timeout := c.config.ProcessingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := job.Source.Resolve(processCtx, c.config.Fetcher)
	if err != nil {
		jobLog.Error("failed to resolve image source", "error", err)
		c.markFailed(ctx, job, err)
		// A malformed source never resolves on retry; a download error might.
		if procErr, ok := err.(*apperrors.ProcessingError); ok && procErr.Code == apperrors.ErrorInvalidSource {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	result := c.config.Extractor.Process(processCtx, data, job.EnhanceQuality)
	duration := time.Since(start)

	if !result.Success {
		if processCtx.Err() == context.DeadlineExceeded {
			timeoutErr := apperrors.NewProcessingTimeoutError(job.JobID, timeout, processCtx.Err())
			jobLog.Error("processing timed out", "duration", duration, "timeout", timeout)
			c.markFailed(ctx, job, timeoutErr)
			return timeoutErr
		}
		jobLog.Warn("extraction failed", "duration", duration, "error", result.ErrorMessage)
		c.markFailed(ctx, job, fmt.Errorf("%s", result.ErrorMessage))
		// Undecodable or unreadable images stay that way.
		return fmt.Errorf("%s: %w", result.ErrorMessage, asynq.SkipRetry)
	}

	receiptID := c.persist(ctx, job, result, jobLog)
	c.markCompleted(ctx, job, result)

	jobLog.Info("Processing completed",
		"duration", duration, "receiptId", receiptID,
		"store", result.Fields.StoreName, "confidence", result.OverallConfidence)
	return nil
}

func (c *Consumer) persist(ctx context.Context, job ReceiptJob, result *pipeline.ExtractionResult, jobLog *logging.Logger) string {
	if c.config.Store == nil {
		return ""
	}
	receiptID, err := c.config.Store.SaveReceipt(ctx, job, result)
	if err != nil {
		jobLog.Error("failed to persist receipt", "error", apperrors.NewStorageFailedError(job.JobID, err))
		return ""
	}
	return receiptID
}

func (c *Consumer) markProcessing(ctx context.Context, job ReceiptJob) {
	if c.config.Tracker != nil {
		c.config.Tracker.MarkProcessing(ctx, job.JobID)
	}
	if c.config.Store != nil {
		if err := c.config.Store.UpdateJobStatus(ctx, job.JobID, "processing", nil); err != nil {
			c.log.Job(job.JobID).Warn("failed to update job status", "status", "processing", "error", err)
		}
	}
}

func (c *Consumer) markCompleted(ctx context.Context, job ReceiptJob, result *pipeline.ExtractionResult) {
	if c.config.Tracker != nil {
		c.config.Tracker.MarkCompleted(ctx, job.JobID, result)
	}
	if c.config.Store != nil {
		details := map[string]interface{}{
			"confidence":     result.OverallConfidence,
			"processingTime": result.ProcessingTimeMs,
			"category":       result.SuggestedCategory,
		}
		if err := c.config.Store.UpdateJobStatus(ctx, job.JobID, "completed", details); err != nil {
			c.log.Job(job.JobID).Warn("failed to update job status", "status", "completed", "error", err)
		}
	}
}

func (c *Consumer) markFailed(ctx context.Context, job ReceiptJob, cause error) {
	var details map[string]interface{}
	if procErr, ok := cause.(*apperrors.ProcessingError); ok {
		details = procErr.ToMap()
	} else {
		details = map[string]interface{}{"error": cause.Error()}
	}
	if c.config.Tracker != nil {
		c.config.Tracker.MarkFailed(ctx, job.JobID, details)
	}
	if c.config.Store != nil {
		if err := c.config.Store.UpdateJobStatus(ctx, job.JobID, "failed", details); err != nil {
			c.log.Job(job.JobID).Warn("failed to update job status", "status", "failed", "error", err)
		}
	}
}
