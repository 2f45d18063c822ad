package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "receipts", cfg.QueueName)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 120*time.Second, cfg.ProcessingTimeout)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, "eng", cfg.TesseractLang)
	assert.True(t, cfg.EnhanceQuality)
	assert.Equal(t, ":8080", cfg.HTTPAddr)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://queue:6380")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("PROCESSING_TIMEOUT", "90s")
	t.Setenv("ENHANCE_QUALITY", "false")
	t.Setenv("TESSERACT_LANG", "deu")

	cfg := Load()
	assert.Equal(t, "redis://queue:6380", cfg.RedisURL)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.Equal(t, 90*time.Second, cfg.ProcessingTimeout)
	assert.False(t, cfg.EnhanceQuality)
	assert.Equal(t, "deu", cfg.TesseractLang)
}

func TestTimeoutAcceptsBareSeconds(t *testing.T) {
	t.Setenv("PROCESSING_TIMEOUT", "45")
	cfg := Load()
	assert.Equal(t, 45*time.Second, cfg.ProcessingTimeout)
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "lots")
	cfg := Load()
	assert.Equal(t, 4, cfg.WorkerConcurrency)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.WorkerConcurrency = 0
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.RedisURL = ""
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.ProcessingTimeout = 100 * time.Millisecond
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.MaxFileSize = 0
	assert.Error(t, cfg.Validate())
}
