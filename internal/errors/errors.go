package errors

import (
	"fmt"
	"time"
)

/**
 * Custom error types for the Receipt OCR Worker
 *
 * Design Pattern: Factory Pattern for error creation
 * Each code maps to one failure class of the extraction pipeline.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Pipeline errors
	ErrorDecodeFailed       ErrorCode = "DECODE_FAILED"
	ErrorRecognitionAttempt ErrorCode = "RECOGNITION_ATTEMPT_FAILED"
	ErrorNoTextExtracted    ErrorCode = "NO_TEXT_EXTRACTED"
	ErrorFieldExtraction    ErrorCode = "FIELD_EXTRACTION_FAILED"
	ErrorProcessingTimeout  ErrorCode = "PROCESSING_TIMEOUT"

	// Infrastructure errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
	ErrorInvalidSource ErrorCode = "INVALID_SOURCE"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewDecodeError(cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDecodeFailed,
		Message:   "input bytes are not a valid image",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewRecognitionAttemptError(method, config string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorRecognitionAttempt,
		Message:   fmt.Sprintf("recognition attempt failed (method=%s, config=%s)", method, config),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"method": method,
			"config": config,
		},
		Cause: cause,
	}
}

func NewNoTextExtractedError() *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNoTextExtracted,
		Message:   "no readable text could be extracted from the image",
		Timestamp: time.Now(),
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "failed to store extraction results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewInvalidSourceError(detail string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidSource,
		Message:   fmt.Sprintf("unresolvable image source: %s", detail),
		Timestamp: time.Now(),
	}
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
