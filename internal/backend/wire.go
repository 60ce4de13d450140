package backend

import "encoding/json"

// InitiateRequest is the multipart initiation request body.
type InitiateRequest struct {
	Filename    string `json:"filename"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type,omitempty"`
}

// PresignedPart is one presigned part URL from the initiate response.
type PresignedPart struct {
	PartNumber int    `json:"part_number"`
	URL        string `json:"url"`
	Size       int64  `json:"size"`
}

// InitiateMetadata carries per-upload tuning the backend may attach to the
// initiate response, overriding the discovered capability.
type InitiateMetadata struct {
	ChunkSize     int64 `json:"chunk_size"`
	MaxConcurrent int   `json:"max_concurrent"`
}

// InitiateResponse is the multipart initiation response body. The response
// also carries complete_url and abort_url; both always point at the fixed
// completion and abort endpoints, so they are not decoded.
type InitiateResponse struct {
	UploadID      string           `json:"upload_id"`
	Key           string           `json:"key"`
	PresignedURLs []PresignedPart  `json:"presigned_urls"`
	Metadata      InitiateMetadata `json:"metadata"`
}

// CompletedPart is one (part_number, etag) pair of the completion request.
type CompletedPart struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
}

// CompleteRequest is the multipart completion request body. Parts must be
// ordered by part number.
type CompleteRequest struct {
	Key      string          `json:"key"`
	UploadID string          `json:"upload_id"`
	Parts    []CompletedPart `json:"parts"`
}

// CompleteResult is the multipart completion response body.
type CompleteResult struct {
	Key  string `json:"key"`
	ETag string `json:"etag"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// SplitPayload is the split job submission body.
type SplitPayload struct {
	TusURL string `json:"tus_url"`
}

// MergePayload is the merge job submission body.
type MergePayload struct {
	VideoTusURL string  `json:"video_tus_url"`
	AudioTusURL string  `json:"audio_tus_url"`
	OffsetSec   float64 `json:"offset_sec"`
}

// TranscribePayload is the transcribe job submission body.
type TranscribePayload struct {
	TusURL          string   `json:"tus_url"`
	TargetLanguages []string `json:"target_languages"`
}

// RenamePayload is the rename job submission body.
type RenamePayload struct {
	Keys       []string `json:"keys"`
	Pattern    string   `json:"pattern"`
	StartIndex int      `json:"start_index"`
	Pad        int      `json:"pad"`
	DryRun     bool     `json:"dryRun"`
}

// capabilityResponse mirrors GET /uploads/tus. Local deployments return only
// tus_endpoint; production adds method, multipart_supported and metadata.
type capabilityResponse struct {
	TusEndpoint        string `json:"tus_endpoint"`
	Method             string `json:"method"`
	MultipartSupported bool   `json:"multipart_supported"`
	Metadata           struct {
		MaxSize       int64    `json:"max_size"`
		ChunkSize     int64    `json:"chunk_size"`
		MaxConcurrent int      `json:"max_concurrent_uploads"`
		Protocols     []string `json:"protocols"`
	} `json:"metadata"`
}

// submitResponse mirrors the job submission endpoints.
type submitResponse struct {
	TaskID string `json:"task_id"`
}

// jobStatusResponse mirrors GET /jobs/{task_id}.
type jobStatusResponse struct {
	TaskID string          `json:"task_id"`
	State  string          `json:"state"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
