package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptflow/receipt-worker/internal/input"
	"github.com/receiptflow/receipt-worker/internal/pipeline"
)

type fakeExtractor struct {
	result   *pipeline.ExtractionResult
	lastData []byte
}

func (f *fakeExtractor) Process(ctx context.Context, data []byte, enhance bool) *pipeline.ExtractionResult {
	f.lastData = data
	return f.result
}

type fakeStore struct {
	saved    []ReceiptJob
	statuses []string
	saveErr  error
}

func (f *fakeStore) SaveReceipt(ctx context.Context, job ReceiptJob, result *pipeline.ExtractionResult) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved = append(f.saved, job)
	return "receipt-1", nil
}

func (f *fakeStore) UpdateJobStatus(ctx context.Context, jobID, status string, details map[string]interface{}) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func newTestConsumer(t *testing.T, extractor Extractor, store ResultStore) *Consumer {
	t.Helper()
	c, err := NewConsumer(&ConsumerConfig{
		RedisURL:          "redis://localhost:6379",
		QueueName:         "receipts",
		Concurrency:       1,
		ProcessingTimeout: time.Minute,
		Extractor:         extractor,
		Store:             store,
	})
	require.NoError(t, err)
	return c
}

func receiptTask(t *testing.T, job ReceiptJob) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(job)
	require.NoError(t, err)
	return asynq.NewTask(TaskTypeProcessReceipt, payload)
}

func base64Source(data []byte) input.Source {
	// Pad so classification clears the minimum-length gate.
	padded := append([]byte{}, data...)
	for len(padded) < 64 {
		padded = append(padded, ' ')
	}
	return input.Classify(base64.StdEncoding.EncodeToString(padded))
}

func TestHandleProcessReceiptSuccess(t *testing.T) {
	extractor := &fakeExtractor{result: &pipeline.ExtractionResult{
		Success:           true,
		Fields:            pipeline.ExtractedFields{StoreName: "CORNER MARKET"},
		OverallConfidence: 0.8,
	}}
	store := &fakeStore{}
	c := newTestConsumer(t, extractor, store)

	job := ReceiptJob{JobID: "job-1", UserID: "u1", Source: base64Source([]byte("fake image"))}
	err := c.handleProcessReceipt(context.Background(), receiptTask(t, job))
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "job-1", store.saved[0].JobID)
	assert.Equal(t, []string{"processing", "completed"}, store.statuses)
	assert.NotEmpty(t, extractor.lastData)
}

func TestHandleProcessReceiptMalformedPayloadSkipsRetry(t *testing.T) {
	c := newTestConsumer(t, &fakeExtractor{result: &pipeline.ExtractionResult{Success: true}}, &fakeStore{})

	err := c.handleProcessReceipt(context.Background(), asynq.NewTask(TaskTypeProcessReceipt, []byte("{broken")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleProcessReceiptUnresolvableSourceSkipsRetry(t *testing.T) {
	store := &fakeStore{}
	c := newTestConsumer(t, &fakeExtractor{result: &pipeline.ExtractionResult{Success: true}}, store)

	job := ReceiptJob{JobID: "job-2", Source: input.Classify("s3://bucket/key.png")}
	err := c.handleProcessReceipt(context.Background(), receiptTask(t, job))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Equal(t, []string{"processing", "failed"}, store.statuses)
}

func TestHandleProcessReceiptExtractionFailureSkipsRetry(t *testing.T) {
	extractor := &fakeExtractor{result: &pipeline.ExtractionResult{
		Success:      false,
		ErrorMessage: "DECODE_FAILED: input bytes are not a valid image",
	}}
	store := &fakeStore{}
	c := newTestConsumer(t, extractor, store)

	job := ReceiptJob{JobID: "job-3", Source: base64Source([]byte("junk"))}
	err := c.handleProcessReceipt(context.Background(), receiptTask(t, job))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, store.saved)
	assert.Equal(t, []string{"processing", "failed"}, store.statuses)
}

func TestHandleProcessReceiptSurvivesStorageFailure(t *testing.T) {
	extractor := &fakeExtractor{result: &pipeline.ExtractionResult{Success: true}}
	store := &fakeStore{saveErr: errors.New("connection refused")}
	c := newTestConsumer(t, extractor, store)

	job := ReceiptJob{JobID: "job-4", Source: base64Source([]byte("fake image"))}
	err := c.handleProcessReceipt(context.Background(), receiptTask(t, job))
	// Persistence problems are logged, not retried; the extraction stands.
	require.NoError(t, err)
	assert.Equal(t, []string{"processing", "completed"}, store.statuses)
}
