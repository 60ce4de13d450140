// Package backend defines the interface to the media API to enable testing
// and mocking, plus the HTTP implementation used in production.
package backend

import (
	"context"
	"fmt"

	"github.com/stemworks/mediakit/mediatypes"
)

// API defines the backend operations used by this module.
// This interface allows for mocking in tests and potential future implementations.
type API interface {
	// DiscoverCapability fetches the advertised upload protocol
	DiscoverCapability(ctx context.Context) (*mediatypes.UploadCapability, error)

	// InitiateMultipart creates a multipart upload and returns presigned part URLs
	InitiateMultipart(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)

	// PutPart uploads raw part bytes to a presigned URL and returns the ETag
	PutPart(ctx context.Context, url string, body []byte) (string, error)

	// CompleteMultipart submits the ordered part list to assemble the object
	CompleteMultipart(ctx context.Context, req CompleteRequest) (*CompleteResult, error)

	// AbortMultipart releases server-side multipart state
	AbortMultipart(ctx context.Context, key, uploadID string) error

	// SubmitJob posts a job of the given kind and returns the opaque job id
	SubmitJob(ctx context.Context, kind mediatypes.JobKind, payload any) (string, error)

	// JobStatus fetches one status snapshot for a job
	JobStatus(ctx context.Context, jobID string) (*mediatypes.JobSnapshot, error)
}

// StatusError is returned for non-2xx backend responses. Retry policy is
// decided from Code: 429 and 5xx are transient, everything else is permanent.
type StatusError struct {
	// Code is the HTTP status code
	Code int

	// Body is the response body, truncated for diagnostics
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("backend: unexpected status %d: %s", e.Code, e.Body)
}
