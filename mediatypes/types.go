// Package mediatypes provides shared type definitions for the mediakit module.
package mediatypes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// UploadMethod identifies the upload protocol advertised by the backend.
type UploadMethod string

// Upload protocols understood by the client.
const (
	// MethodTus is the resumable tus protocol, served by tusd in local deployments
	MethodTus UploadMethod = "tus"

	// MethodS3Multipart is the presigned multipart protocol used in production
	MethodS3Multipart UploadMethod = "s3_multipart"
)

// UploadCapability describes how the backend wants files uploaded.
// It is discovered once per process lifetime and cached; see Client.Capability.
type UploadCapability struct {
	// Method is the upload protocol to use
	Method UploadMethod

	// Endpoint is the upload endpoint (tus URL or initiate path)
	Endpoint string

	// ChunkSize is the part size in bytes the backend asks clients to use
	ChunkSize int64

	// MaxConcurrent is the maximum number of parts to upload in parallel
	MaxConcurrent int

	// MaxSize is the largest accepted file size in bytes (0 means unlimited)
	MaxSize int64

	// MultipartSupported reports whether the backend accepts multipart initiation
	MultipartSupported bool
}

// UploadPart is one byte range of a multipart upload.
// Part numbers are 1-based, contiguous and unique within a session.
type UploadPart struct {
	// Number is the 1-based part index
	Number int

	// Offset is the byte offset of the part within the file
	Offset int64

	// Size is the part length in bytes
	Size int64

	// URL is the presigned PUT URL for this part
	URL string

	// ETag is set after the part uploads successfully
	ETag string
}

// SessionState is the lifecycle state of an upload session.
type SessionState string

// Upload session states. Transitions move forward only, one step at a time;
// Completed and Aborted are terminal, Failed accepts only an explicit abort.
const (
	SessionPlanning   SessionState = "planning"
	SessionUploading  SessionState = "uploading"
	SessionCompleting SessionState = "completing"
	SessionCompleted  SessionState = "completed"
	SessionAborted    SessionState = "aborted"
	SessionFailed     SessionState = "failed"
)

// Terminal reports whether the session accepts no further part operations.
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionAborted || s == SessionFailed
}

// JobKind identifies a media transform job type.
type JobKind string

// Job kinds accepted by the backend worker fleet.
const (
	JobSplit      JobKind = "split"
	JobMerge      JobKind = "merge"
	JobTranscribe JobKind = "transcribe"
	JobRename     JobKind = "rename"
)

// JobState is the canonical job lifecycle state. Backend endpoints report
// state tokens with inconsistent casing; they are normalized to this enum at
// the wire boundary.
type JobState string

// Canonical job states.
const (
	JobQueued    JobState = "queued"
	JobStarted   JobState = "started"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Terminal reports whether the state is final. A terminal snapshot is
// immutable once recorded.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// JobSnapshot is the latest observed status of a tracked job.
type JobSnapshot struct {
	// ID is the opaque job id returned at submission
	ID string

	// Kind is the job type, when known to the registry
	Kind JobKind

	// State is the canonical lifecycle state
	State JobState

	// Result holds the decoded result payload once the job succeeds
	Result *JobResult

	// Error is the failure description for failed jobs
	Error string

	// PollFailed marks a snapshot synthesized after repeated status poll
	// failures. The backend may still be running the job; only snapshots
	// with PollFailed false report a backend-observed state
	PollFailed bool

	// Observed is when this snapshot was taken
	Observed time.Time
}

// ObjectRef points at an object produced or consumed by a job.
type ObjectRef struct {
	// Key is the object key within the results bucket
	Key string `json:"key"`

	// URL is a stable reference to the object
	URL string `json:"url"`
}

// RenameMapping is one from/to pair of a rename job.
type RenameMapping struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ProgressTracker defines the interface for tracking transfer progress.
// Implementations can provide real-time progress updates during uploads.
type ProgressTracker interface {
	// Update is called as parts complete with aggregate transfer progress
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the transfer completes successfully
	Complete()

	// Error is called when the transfer fails
	Error(err error)
}

// UploadResult contains the result of an upload operation.
type UploadResult struct {
	// Key is the object key assigned by the backend (multipart uploads)
	Key string

	// Location is the stable object reference usable in job submissions
	Location string

	// ETag is the entity tag of the assembled object, when reported
	ETag string

	// Size is the uploaded size in bytes
	Size int64

	// Method is the protocol the upload used
	Method UploadMethod

	// Duration is how long the upload took
	Duration time.Duration
}

// SplitRequest asks the worker fleet to separate stems from an uploaded file.
type SplitRequest struct {
	// SourceURL is the uploaded object reference
	SourceURL string
}

// MergeRequest asks the worker fleet to mux one video and one audio stream.
type MergeRequest struct {
	// VideoURL is the uploaded video reference
	VideoURL string

	// AudioURL is the uploaded audio reference
	AudioURL string

	// OffsetSec shifts the audio track by the given seconds (default 0)
	OffsetSec float64
}

// TranscribeRequest asks the worker fleet to produce subtitles.
type TranscribeRequest struct {
	// SourceURL is the uploaded object reference
	SourceURL string

	// TargetLanguages lists subtitle languages; defaults to ["original"]
	TargetLanguages []string
}

// RenameRequest asks the worker fleet to rename result objects in bulk.
type RenameRequest struct {
	// Keys are the existing object keys to rename
	Keys []string

	// Pattern is the rename template with {index}, {basename} and {ext} placeholders
	Pattern string

	// StartIndex is the first value substituted for {index} (default 1)
	StartIndex int

	// Pad is the zero-pad width applied to {index} (default 2)
	Pad int

	// DryRun previews the mapping without touching any object
	DryRun bool
}

// Configuration types for functional options

// ClientConfig holds configuration for the mediakit client.
type ClientConfig struct {
	HTTPClient       *http.Client
	RequestTimeout   time.Duration
	PartSize         int64
	Concurrency      int
	RetryDelays      []time.Duration
	PollInterval     time.Duration
	PollFailureLimit int
	Logger           *slog.Logger
	Filesystem       fs.Filesystem // Filesystem abstraction for file operations
}

// UploadOptionConfig holds configuration for upload operations via functional options.
type UploadOptionConfig struct {
	ContentType     string
	Filename        string
	PartSize        int64
	Concurrency     int
	ProgressTracker ProgressTracker
	OnPart          func(UploadPart)
}

// TrackOptionConfig holds configuration for job tracking via functional options.
type TrackOptionConfig struct {
	Interval     time.Duration
	FailureLimit int
}

// Option is a functional option for configuring the mediakit client.
type (
	Option func(*ClientConfig)
	// UploadOption is a functional option for configuring upload operations.
	UploadOption func(*UploadOptionConfig)
	// TrackOption is a functional option for configuring job tracking.
	TrackOption func(*TrackOptionConfig)
)
