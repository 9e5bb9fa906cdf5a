/**
 * Custom error types for the Screening Worker
 *
 * Per-image failures (decode, recognition, span geometry) are non-fatal and
 * contained at image granularity; engine initialization failures abort the run.
 */

package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Per-image errors (non-fatal, image degraded but still reported)
	ErrorDecodeFailed      ErrorCode = "DECODE_FAILED"
	ErrorRecognitionFailed ErrorCode = "RECOGNITION_FAILED"
	ErrorMalformedSpan     ErrorCode = "MALFORMED_SPAN"

	// Run-level errors (fatal for the job)
	ErrorEngineInit        ErrorCode = "ENGINE_INIT_FAILED"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"

	// Persistence/packaging errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
	ErrorArchiveFailed ErrorCode = "ARCHIVE_FAILED"
)

// ScreeningError represents a structured processing error
type ScreeningError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	ImageID   string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ScreeningError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScreeningError) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err carries the given screening error code.
func IsCode(err error, code ErrorCode) bool {
	var se *ScreeningError
	if stderrors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// Factory functions for common errors

func NewDecodeFailedError(imageID string, filename string, cause error) *ScreeningError {
	return &ScreeningError{
		Code:      ErrorDecodeFailed,
		Message:   fmt.Sprintf("Image bytes could not be decoded: %s", filename),
		ImageID:   imageID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"filename": filename,
		},
		Cause: cause,
	}
}

func NewRecognitionFailedError(jobID string, imageID string, cause error) *ScreeningError {
	return &ScreeningError{
		Code:      ErrorRecognitionFailed,
		Message:   "OCR inference failed for image",
		JobID:     jobID,
		ImageID:   imageID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewMalformedSpanError(imageID string, pointCount int) *ScreeningError {
	return &ScreeningError{
		Code:      ErrorMalformedSpan,
		Message:   fmt.Sprintf("Unsupported span geometry with %d points", pointCount),
		ImageID:   imageID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"point_count": pointCount,
		},
	}
}

func NewEngineInitError(engine string, cause error) *ScreeningError {
	return &ScreeningError{
		Code:      ErrorEngineInit,
		Message:   fmt.Sprintf("OCR engine failed to initialize: %s", engine),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"engine": engine,
		},
		Cause: cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ScreeningError {
	return &ScreeningError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *ScreeningError {
	return &ScreeningError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store screening results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewArchiveFailedError(jobID string, cause error) *ScreeningError {
	return &ScreeningError{
		Code:      ErrorArchiveFailed,
		Message:   "Failed to package result archive",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ScreeningError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.ImageID != "" {
		result["image_id"] = e.ImageID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
