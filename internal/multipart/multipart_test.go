package multipart

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemworks/mediakit/errors"
	"github.com/stemworks/mediakit/internal/backend"
	"github.com/stemworks/mediakit/internal/testutil"
	"github.com/stemworks/mediakit/mediatypes"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memFile(t *testing.T, size int64) fs.File {
	t.Helper()
	fsys := billy.NewInMemoryFS()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, fsys.WriteFile("src.bin", data, 0o644))
	f, err := fsys.Open("src.bin")
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func initiateResponse(size, partSize int64) *backend.InitiateResponse {
	ranges := PartRanges(size, partSize)
	resp := &backend.InitiateResponse{
		UploadID: "upload-1",
		Key:      "uploads/src.bin",
	}
	for _, r := range ranges {
		resp.PresignedURLs = append(resp.PresignedURLs, backend.PresignedPart{
			PartNumber: r.Number,
			URL:        fmt.Sprintf("https://store.example.com/part/%d", r.Number),
			Size:       r.Size,
		})
	}
	return resp
}

func newTestUploader(mock *testutil.MockBackend) *Uploader {
	u := New(mock, testLogger())
	u.Delays = []time.Duration{0, 0, 0, 0, 0}
	return u
}

func TestPartRanges(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		partSize int64
		want     []Range
	}{
		{
			name:     "exact multiple",
			size:     10,
			partSize: 5,
			want: []Range{
				{Number: 1, Offset: 0, Size: 5},
				{Number: 2, Offset: 5, Size: 5},
			},
		},
		{
			name:     "remainder in last part",
			size:     12 * 1024 * 1024,
			partSize: 5 * 1024 * 1024,
			want: []Range{
				{Number: 1, Offset: 0, Size: 5 * 1024 * 1024},
				{Number: 2, Offset: 5 * 1024 * 1024, Size: 5 * 1024 * 1024},
				{Number: 3, Offset: 10 * 1024 * 1024, Size: 2 * 1024 * 1024},
			},
		},
		{
			name:     "single part when smaller than part size",
			size:     100,
			partSize: 1024,
			want:     []Range{{Number: 1, Offset: 0, Size: 100}},
		},
		{
			name:     "zero size",
			size:     0,
			partSize: 5,
			want:     nil,
		},
		{
			name:     "zero part size",
			size:     10,
			partSize: 0,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PartRanges(tt.size, tt.partSize))
		})
	}
}

func TestPartRangesPartitionFile(t *testing.T) {
	const size, partSize = 1<<20 + 17, 64 << 10

	ranges := PartRanges(size, partSize)
	require.NotEmpty(t, ranges)

	var offset int64
	for i, r := range ranges {
		assert.Equal(t, i+1, r.Number)
		assert.Equal(t, offset, r.Offset)
		assert.Positive(t, r.Size)
		offset += r.Size
	}
	assert.Equal(t, int64(size), offset)
}

func TestUploadSuccess(t *testing.T) {
	const size, partSize = int64(100), int64(30)

	var completeReq backend.CompleteRequest
	mock := &testutil.MockBackend{
		InitiateMultipartFunc: func(_ context.Context, req backend.InitiateRequest) (*backend.InitiateResponse, error) {
			assert.Equal(t, "src.bin", req.Filename)
			assert.Equal(t, size, req.FileSize)
			return initiateResponse(size, partSize), nil
		},
		PutPartFunc: func(_ context.Context, url string, body []byte) (string, error) {
			return fmt.Sprintf("etag-%d", len(body)), nil
		},
		CompleteMultipartFunc: func(_ context.Context, req backend.CompleteRequest) (*backend.CompleteResult, error) {
			completeReq = req
			return &backend.CompleteResult{
				Key:  req.Key,
				ETag: "final-etag",
				Size: size,
				URL:  "https://store.example.com/uploads/src.bin",
			}, nil
		},
	}

	tracker := &testutil.RecordingTracker{}
	u := newTestUploader(mock)
	res, err := u.Upload(context.Background(), memFile(t, size), "src.bin", size,
		&mediatypes.UploadCapability{Method: mediatypes.MethodS3Multipart},
		&mediatypes.UploadOptionConfig{PartSize: partSize, Concurrency: 1, ProgressTracker: tracker})

	require.NoError(t, err)
	assert.Equal(t, "uploads/src.bin", res.Key)
	assert.Equal(t, "final-etag", res.ETag)
	assert.Equal(t, size, res.Size)
	assert.Equal(t, mediatypes.MethodS3Multipart, res.Method)

	require.Len(t, completeReq.Parts, 4)
	for i, p := range completeReq.Parts {
		assert.Equal(t, i+1, p.PartNumber)
		assert.NotEmpty(t, p.ETag)
	}
	assert.Equal(t, "upload-1", completeReq.UploadID)

	assert.True(t, tracker.Completed)
	last, ok := tracker.Last()
	require.True(t, ok)
	assert.Equal(t, [2]int64{size, size}, last)
}

func TestUploadConcurrencyBound(t *testing.T) {
	const size, partSize, bound = int64(1000), int64(50), 3

	gauge := &testutil.Gauge{}
	mock := &testutil.MockBackend{
		InitiateMultipartFunc: func(context.Context, backend.InitiateRequest) (*backend.InitiateResponse, error) {
			return initiateResponse(size, partSize), nil
		},
		PutPartFunc: func(context.Context, string, []byte) (string, error) {
			gauge.Enter()
			defer gauge.Exit()
			time.Sleep(5 * time.Millisecond)
			return "etag", nil
		},
		CompleteMultipartFunc: func(_ context.Context, req backend.CompleteRequest) (*backend.CompleteResult, error) {
			return &backend.CompleteResult{Key: req.Key}, nil
		},
	}

	u := newTestUploader(mock)
	_, err := u.Upload(context.Background(), memFile(t, size), "src.bin", size,
		&mediatypes.UploadCapability{Method: mediatypes.MethodS3Multipart},
		&mediatypes.UploadOptionConfig{PartSize: partSize, Concurrency: bound})

	require.NoError(t, err)
	assert.LessOrEqual(t, gauge.Max(), bound)
	assert.Positive(t, gauge.Max())
}

func TestUploadTransientFailuresRetried(t *testing.T) {
	const size, partSize = int64(40), int64(40)

	var attempts atomic.Int32
	mock := &testutil.MockBackend{
		InitiateMultipartFunc: func(context.Context, backend.InitiateRequest) (*backend.InitiateResponse, error) {
			return initiateResponse(size, partSize), nil
		},
		PutPartFunc: func(context.Context, string, []byte) (string, error) {
			if attempts.Add(1) <= 2 {
				return "", &backend.StatusError{Code: 503}
			}
			return "etag", nil
		},
		CompleteMultipartFunc: func(_ context.Context, req backend.CompleteRequest) (*backend.CompleteResult, error) {
			return &backend.CompleteResult{Key: req.Key}, nil
		},
	}

	u := newTestUploader(mock)
	_, err := u.Upload(context.Background(), memFile(t, size), "src.bin", size,
		&mediatypes.UploadCapability{Method: mediatypes.MethodS3Multipart},
		&mediatypes.UploadOptionConfig{PartSize: partSize, Concurrency: 1})

	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestUploadPermanentFailureAbortsOnce(t *testing.T) {
	const size, partSize = int64(90), int64(30)

	var (
		aborts    atomic.Int32
		completes atomic.Int32
		attempts  atomic.Int32
	)
	mock := &testutil.MockBackend{
		InitiateMultipartFunc: func(context.Context, backend.InitiateRequest) (*backend.InitiateResponse, error) {
			return initiateResponse(size, partSize), nil
		},
		PutPartFunc: func(context.Context, string, []byte) (string, error) {
			attempts.Add(1)
			return "", &backend.StatusError{Code: 403, Body: "signature expired"}
		},
		CompleteMultipartFunc: func(context.Context, backend.CompleteRequest) (*backend.CompleteResult, error) {
			completes.Add(1)
			return &backend.CompleteResult{}, nil
		},
		AbortMultipartFunc: func(_ context.Context, key, uploadID string) error {
			aborts.Add(1)
			assert.Equal(t, "uploads/src.bin", key)
			assert.Equal(t, "upload-1", uploadID)
			return nil
		},
	}

	tracker := &testutil.RecordingTracker{}
	u := newTestUploader(mock)
	_, err := u.Upload(context.Background(), memFile(t, size), "src.bin", size,
		&mediatypes.UploadCapability{Method: mediatypes.MethodS3Multipart},
		&mediatypes.UploadOptionConfig{PartSize: partSize, Concurrency: 3, ProgressTracker: tracker})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPartUpload)
	assert.Equal(t, int32(1), aborts.Load(), "abort must fire exactly once")
	assert.Zero(t, completes.Load(), "completion must not run after failure")
	assert.False(t, tracker.Completed)

	// A 403 is permanent; each part may fail once but never retries.
	assert.LessOrEqual(t, attempts.Load(), int32(3))
}

func TestUploadCompletionFailureAborts(t *testing.T) {
	const size, partSize = int64(60), int64(30)

	var aborts atomic.Int32
	mock := &testutil.MockBackend{
		InitiateMultipartFunc: func(context.Context, backend.InitiateRequest) (*backend.InitiateResponse, error) {
			return initiateResponse(size, partSize), nil
		},
		PutPartFunc: func(context.Context, string, []byte) (string, error) {
			return "etag", nil
		},
		CompleteMultipartFunc: func(context.Context, backend.CompleteRequest) (*backend.CompleteResult, error) {
			return nil, &backend.StatusError{Code: 500}
		},
		AbortMultipartFunc: func(_ context.Context, key, uploadID string) error {
			aborts.Add(1)
			assert.Equal(t, "uploads/src.bin", key)
			assert.Equal(t, "upload-1", uploadID)
			return nil
		},
	}

	tracker := &testutil.RecordingTracker{}
	u := newTestUploader(mock)
	_, err := u.Upload(context.Background(), memFile(t, size), "src.bin", size,
		&mediatypes.UploadCapability{Method: mediatypes.MethodS3Multipart},
		&mediatypes.UploadOptionConfig{PartSize: partSize, Concurrency: 2, ProgressTracker: tracker})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCompletion)
	assert.Equal(t, int32(1), aborts.Load(), "completion failure triggers exactly one abort")
	assert.False(t, tracker.Completed)
}

func TestUploadMissingETag(t *testing.T) {
	const size, partSize = int64(10), int64(10)

	mock := &testutil.MockBackend{
		InitiateMultipartFunc: func(context.Context, backend.InitiateRequest) (*backend.InitiateResponse, error) {
			return initiateResponse(size, partSize), nil
		},
		PutPartFunc: func(context.Context, string, []byte) (string, error) {
			return "", errors.NewError("putPart", errors.ErrMissingETag)
		},
	}

	u := newTestUploader(mock)
	_, err := u.Upload(context.Background(), memFile(t, size), "src.bin", size,
		&mediatypes.UploadCapability{Method: mediatypes.MethodS3Multipart},
		&mediatypes.UploadOptionConfig{PartSize: partSize, Concurrency: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingETag)
	assert.ErrorIs(t, err, errors.ErrPartUpload)
}

func TestUploadPartCountMismatch(t *testing.T) {
	const size, partSize = int64(90), int64(30)

	mock := &testutil.MockBackend{
		InitiateMultipartFunc: func(context.Context, backend.InitiateRequest) (*backend.InitiateResponse, error) {
			resp := initiateResponse(size, partSize)
			resp.PresignedURLs = resp.PresignedURLs[:1]
			return resp, nil
		},
	}

	u := newTestUploader(mock)
	_, err := u.Upload(context.Background(), memFile(t, size), "src.bin", size,
		&mediatypes.UploadCapability{Method: mediatypes.MethodS3Multipart},
		&mediatypes.UploadOptionConfig{PartSize: partSize})

	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestUploadCancellation(t *testing.T) {
	const size, partSize = int64(500), int64(50)

	ctx, cancel := context.WithCancel(context.Background())

	var (
		once   sync.Once
		aborts atomic.Int32
	)
	mock := &testutil.MockBackend{
		InitiateMultipartFunc: func(context.Context, backend.InitiateRequest) (*backend.InitiateResponse, error) {
			return initiateResponse(size, partSize), nil
		},
		PutPartFunc: func(context.Context, string, []byte) (string, error) {
			once.Do(cancel)
			time.Sleep(2 * time.Millisecond)
			return "etag", nil
		},
		AbortMultipartFunc: func(context.Context, string, string) error {
			aborts.Add(1)
			return nil
		},
	}

	u := newTestUploader(mock)
	_, err := u.Upload(ctx, memFile(t, size), "src.bin", size,
		&mediatypes.UploadCapability{Method: mediatypes.MethodS3Multipart},
		&mediatypes.UploadOptionConfig{PartSize: partSize, Concurrency: 2})

	require.Error(t, err)
	assert.True(t, errors.IsUploadAborted(err))
	assert.Equal(t, int32(1), aborts.Load())
}

func TestUploadBackendChunkSizeOverride(t *testing.T) {
	const size = int64(100)

	var putCalls atomic.Int32
	mock := &testutil.MockBackend{
		InitiateMultipartFunc: func(context.Context, backend.InitiateRequest) (*backend.InitiateResponse, error) {
			resp := initiateResponse(size, 25)
			resp.Metadata.ChunkSize = 25
			return resp, nil
		},
		PutPartFunc: func(_ context.Context, _ string, body []byte) (string, error) {
			putCalls.Add(1)
			assert.Equal(t, 25, len(body))
			return "etag", nil
		},
		CompleteMultipartFunc: func(_ context.Context, req backend.CompleteRequest) (*backend.CompleteResult, error) {
			return &backend.CompleteResult{Key: req.Key}, nil
		},
	}

	u := newTestUploader(mock)
	// The client asks for 40-byte parts; the initiate response overrides to 25.
	_, err := u.Upload(context.Background(), memFile(t, size), "src.bin", size,
		&mediatypes.UploadCapability{Method: mediatypes.MethodS3Multipart},
		&mediatypes.UploadOptionConfig{PartSize: 40, Concurrency: 1})

	require.NoError(t, err)
	assert.Equal(t, int32(4), putCalls.Load())
}
