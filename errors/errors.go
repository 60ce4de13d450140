// Package errors provides error types and handling for media backend operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a failed client operation with context about what failed.
// It wraps the underlying transport or protocol error with additional context
// for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "initiateMultipart", "pollJob")
	Op string

	// Key is the object key involved (if applicable)
	Key string

	// JobID is the backend job involved (if applicable)
	JobID string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("mediakit.%s %s: %v", e.Op, e.Key, e.Err)
	}
	if e.JobID != "" {
		return fmt.Sprintf("mediakit.%s job %s: %v", e.Op, e.JobID, e.Err)
	}
	return fmt.Sprintf("mediakit.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithJob adds job id context to an existing error.
func (e *Error) WithJob(jobID string) *Error {
	e.JobID = jobID
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewKeyError creates a new Error with object key context.
func NewKeyError(op, key string, err error) *Error {
	return &Error{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// NewJobError creates a new Error with job id context.
func NewJobError(op, jobID string, err error) *Error {
	return &Error{
		Op:    op,
		JobID: jobID,
		Err:   err,
	}
}

// Sentinel errors for common operation failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrCapabilityDiscovery indicates that upload capability discovery failed.
	// Uploads stay unavailable until a later discovery succeeds.
	ErrCapabilityDiscovery = errors.New("mediakit: capability discovery failed")

	// ErrPartUpload indicates that a part upload exhausted its retry budget
	// or failed with a non-retryable response
	ErrPartUpload = errors.New("mediakit: part upload failed")

	// ErrMissingETag indicates that a part upload response carried no ETag header
	ErrMissingETag = errors.New("mediakit: part response missing etag")

	// ErrCompletion indicates that the multipart completion call failed
	ErrCompletion = errors.New("mediakit: multipart completion failed")

	// ErrUploadAborted indicates that the upload session was cancelled or aborted
	ErrUploadAborted = errors.New("mediakit: upload aborted")

	// ErrInvalidTransition indicates a disallowed upload session state change
	ErrInvalidTransition = errors.New("mediakit: invalid session transition")

	// ErrJobSubmission indicates that a job submission call failed
	ErrJobSubmission = errors.New("mediakit: job submission failed")

	// ErrJobPoll indicates that job status polling failed repeatedly
	ErrJobPoll = errors.New("mediakit: job status poll failed")

	// ErrJobNotFound indicates that the backend does not know the job id
	ErrJobNotFound = errors.New("mediakit: job not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("mediakit: invalid input")
)

// IsInvalidInput checks if an error indicates invalid input.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsJobNotFound checks if an error indicates an unknown job id.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}

// IsUploadAborted checks if an error indicates a cancelled or aborted upload.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsUploadAborted(err error) bool {
	return errors.Is(err, ErrUploadAborted)
}
