// Package testutil provides test utilities and mocks for backend operations.
// This package is internal and should only be used for testing within the
// mediakit module.
package testutil

import (
	"context"
	"sync"

	"github.com/stemworks/mediakit/internal/backend"
	"github.com/stemworks/mediakit/mediatypes"
)

// MockBackend is a mock implementation of the backend API interface for
// testing. It allows customization of each operation through function fields.
type MockBackend struct {
	DiscoverCapabilityFunc func(context.Context) (*mediatypes.UploadCapability, error)
	InitiateMultipartFunc  func(context.Context, backend.InitiateRequest) (*backend.InitiateResponse, error)
	PutPartFunc            func(context.Context, string, []byte) (string, error)
	CompleteMultipartFunc  func(context.Context, backend.CompleteRequest) (*backend.CompleteResult, error)
	AbortMultipartFunc     func(context.Context, string, string) error
	SubmitJobFunc          func(context.Context, mediatypes.JobKind, any) (string, error)
	JobStatusFunc          func(context.Context, string) (*mediatypes.JobSnapshot, error)
}

// DiscoverCapability mocks capability discovery.
func (m *MockBackend) DiscoverCapability(ctx context.Context) (*mediatypes.UploadCapability, error) {
	if m.DiscoverCapabilityFunc != nil {
		return m.DiscoverCapabilityFunc(ctx)
	}
	return &mediatypes.UploadCapability{Method: mediatypes.MethodS3Multipart}, nil
}

// InitiateMultipart mocks multipart initiation.
func (m *MockBackend) InitiateMultipart(ctx context.Context, req backend.InitiateRequest) (*backend.InitiateResponse, error) {
	if m.InitiateMultipartFunc != nil {
		return m.InitiateMultipartFunc(ctx, req)
	}
	return &backend.InitiateResponse{}, nil
}

// PutPart mocks a presigned part upload.
func (m *MockBackend) PutPart(ctx context.Context, url string, body []byte) (string, error) {
	if m.PutPartFunc != nil {
		return m.PutPartFunc(ctx, url, body)
	}
	return "etag", nil
}

// CompleteMultipart mocks multipart completion.
func (m *MockBackend) CompleteMultipart(ctx context.Context, req backend.CompleteRequest) (*backend.CompleteResult, error) {
	if m.CompleteMultipartFunc != nil {
		return m.CompleteMultipartFunc(ctx, req)
	}
	return &backend.CompleteResult{}, nil
}

// AbortMultipart mocks a multipart abort.
func (m *MockBackend) AbortMultipart(ctx context.Context, key, uploadID string) error {
	if m.AbortMultipartFunc != nil {
		return m.AbortMultipartFunc(ctx, key, uploadID)
	}
	return nil
}

// SubmitJob mocks a job submission.
func (m *MockBackend) SubmitJob(ctx context.Context, kind mediatypes.JobKind, payload any) (string, error) {
	if m.SubmitJobFunc != nil {
		return m.SubmitJobFunc(ctx, kind, payload)
	}
	return "task-1", nil
}

// JobStatus mocks a job status poll.
func (m *MockBackend) JobStatus(ctx context.Context, jobID string) (*mediatypes.JobSnapshot, error) {
	if m.JobStatusFunc != nil {
		return m.JobStatusFunc(ctx, jobID)
	}
	return &mediatypes.JobSnapshot{ID: jobID, State: mediatypes.JobQueued}, nil
}

// Verify that the mock implements the backend interface
var _ backend.API = (*MockBackend)(nil)

// Gauge measures concurrent in-flight operations and records the maximum
// ever observed. Used to verify the part-upload concurrency bound.
type Gauge struct {
	mu      sync.Mutex
	current int
	max     int
}

// Enter marks one operation in flight.
func (g *Gauge) Enter() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
	if g.current > g.max {
		g.max = g.current
	}
}

// Exit marks one operation finished.
func (g *Gauge) Exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current--
}

// Max returns the highest concurrency observed.
func (g *Gauge) Max() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.max
}

// RecordingTracker is a ProgressTracker capturing every callback for
// assertions.
type RecordingTracker struct {
	mu        sync.Mutex
	Updates   [][2]int64
	Completed bool
	Failed    error
}

// Update records an aggregate progress callback.
func (r *RecordingTracker) Update(bytesTransferred, totalBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Updates = append(r.Updates, [2]int64{bytesTransferred, totalBytes})
}

// Complete records the completion callback.
func (r *RecordingTracker) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Completed = true
}

// Error records the failure callback.
func (r *RecordingTracker) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = err
}

// Last returns the most recent progress update, if any.
func (r *RecordingTracker) Last() ([2]int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Updates) == 0 {
		return [2]int64{}, false
	}
	return r.Updates[len(r.Updates)-1], true
}
