/**
 * Configuration management for the Receipt OCR Worker
 *
 * All tunables come in through the environment with explicit defaults; there
 * is no global config instance, callers pass *Config down.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the worker and API server.
type Config struct {
	// Infrastructure
	RedisURL    string
	DatabaseURL string
	QueueName   string

	// Worker behavior
	WorkerConcurrency int
	ProcessingTimeout time.Duration
	MaxFileSize       int64

	// Extraction behavior
	TesseractLang  string
	EnhanceQuality bool

	// HTTP API
	HTTPAddr string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "receipts"),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),
		ProcessingTimeout: getEnvAsDuration("PROCESSING_TIMEOUT", 120*time.Second),
		MaxFileSize:       int64(getEnvAsInt("MAX_FILE_SIZE", 10*1024*1024)),
		TesseractLang:     getEnvOrDefault("TESSERACT_LANG", "eng"),
		EnhanceQuality:    getEnvAsBool("ENHANCE_QUALITY", true),
		HTTPAddr:          getEnvOrDefault("HTTP_ADDR", ":8080"),
	}
}

// Validate checks that required configuration is present and sane.
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.WorkerConcurrency)
	}
	if c.ProcessingTimeout < time.Second {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1s, got %v", c.ProcessingTimeout)
	}
	if c.MaxFileSize < 1 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.MaxFileSize)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		// Accept a bare number of seconds.
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
