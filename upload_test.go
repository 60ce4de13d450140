package mediakit

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemworks/mediakit/errors"
	"github.com/stemworks/mediakit/internal/backend"
	"github.com/stemworks/mediakit/internal/testutil"
	"github.com/stemworks/mediakit/mediatypes"
)

func memFS(t *testing.T, name string, size int) fs.Filesystem {
	t.Helper()
	fsys := billy.NewInMemoryFS()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, fsys.WriteFile(name, data, 0o644))
	return fsys
}

func multipartCapability() *mediatypes.UploadCapability {
	return &mediatypes.UploadCapability{
		Method:             mediatypes.MethodS3Multipart,
		ChunkSize:          64,
		MaxConcurrent:      2,
		MultipartSupported: true,
	}
}

func TestUploadFileMultipart(t *testing.T) {
	const size = 200

	var initReq backend.InitiateRequest
	mock := &testutil.MockBackend{
		DiscoverCapabilityFunc: func(context.Context) (*mediatypes.UploadCapability, error) {
			return multipartCapability(), nil
		},
		InitiateMultipartFunc: func(_ context.Context, req backend.InitiateRequest) (*backend.InitiateResponse, error) {
			initReq = req
			resp := &backend.InitiateResponse{UploadID: "u-1", Key: "uploads/take1.wav"}
			parts := (size + 63) / 64
			for i := 1; i <= parts; i++ {
				resp.PresignedURLs = append(resp.PresignedURLs, backend.PresignedPart{
					PartNumber: i,
					URL:        fmt.Sprintf("https://store/p%d", i),
				})
			}
			return resp, nil
		},
		PutPartFunc: func(context.Context, string, []byte) (string, error) {
			return "etag", nil
		},
		CompleteMultipartFunc: func(_ context.Context, req backend.CompleteRequest) (*backend.CompleteResult, error) {
			return &backend.CompleteResult{
				Key:  req.Key,
				ETag: "final",
				URL:  "https://store/uploads/take1.wav",
			}, nil
		},
	}

	c := NewWithBackend(mock,
		WithLogger(testLogger()),
		WithFilesystem(memFS(t, "take1.wav", size)),
	)

	res, err := c.UploadFile(context.Background(), "take1.wav")
	require.NoError(t, err)
	assert.Equal(t, "uploads/take1.wav", res.Key)
	assert.Equal(t, "https://store/uploads/take1.wav", res.Location)
	assert.Equal(t, int64(size), res.Size)
	assert.Equal(t, mediatypes.MethodS3Multipart, res.Method)

	assert.Equal(t, "take1.wav", initReq.Filename)
	assert.Equal(t, int64(size), initReq.FileSize)
	assert.NotEmpty(t, initReq.ContentType, "content type is sniffed when not given")
}

func TestUploadFileFilenameOverride(t *testing.T) {
	mock := &testutil.MockBackend{
		DiscoverCapabilityFunc: func(context.Context) (*mediatypes.UploadCapability, error) {
			return multipartCapability(), nil
		},
		InitiateMultipartFunc: func(_ context.Context, req backend.InitiateRequest) (*backend.InitiateResponse, error) {
			assert.Equal(t, "renamed.wav", req.Filename)
			assert.Equal(t, "audio/wav", req.ContentType)
			return &backend.InitiateResponse{
				UploadID:      "u-1",
				Key:           "uploads/renamed.wav",
				PresignedURLs: []backend.PresignedPart{{PartNumber: 1, URL: "https://store/p1"}},
			}, nil
		},
		CompleteMultipartFunc: func(_ context.Context, req backend.CompleteRequest) (*backend.CompleteResult, error) {
			return &backend.CompleteResult{Key: req.Key}, nil
		},
	}

	c := NewWithBackend(mock,
		WithLogger(testLogger()),
		WithFilesystem(memFS(t, "take1.wav", 10)),
	)

	_, err := c.UploadFile(context.Background(), "take1.wav",
		WithFilename("renamed.wav"),
		WithContentType("audio/wav"),
	)
	require.NoError(t, err)
}

func TestUploadFileMissing(t *testing.T) {
	c := NewWithBackend(&testutil.MockBackend{},
		WithLogger(testLogger()),
		WithFilesystem(billy.NewInMemoryFS()),
	)

	_, err := c.UploadFile(context.Background(), "nope.wav")
	require.Error(t, err)
}

func TestUploadFileEmpty(t *testing.T) {
	c := NewWithBackend(&testutil.MockBackend{},
		WithLogger(testLogger()),
		WithFilesystem(memFS(t, "empty.wav", 0)),
	)

	_, err := c.UploadFile(context.Background(), "empty.wav")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestUploadFileExceedsMaxSize(t *testing.T) {
	var initiated atomic.Int32
	mock := &testutil.MockBackend{
		DiscoverCapabilityFunc: func(context.Context) (*mediatypes.UploadCapability, error) {
			cap := multipartCapability()
			cap.MaxSize = 50
			return cap, nil
		},
		InitiateMultipartFunc: func(context.Context, backend.InitiateRequest) (*backend.InitiateResponse, error) {
			initiated.Add(1)
			return &backend.InitiateResponse{}, nil
		},
	}

	c := NewWithBackend(mock,
		WithLogger(testLogger()),
		WithFilesystem(memFS(t, "big.wav", 100)),
	)

	_, err := c.UploadFile(context.Background(), "big.wav")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
	assert.Zero(t, initiated.Load(), "oversize files are rejected before initiation")
}

func TestUploadFileReportsFailureToTracker(t *testing.T) {
	mock := &testutil.MockBackend{
		DiscoverCapabilityFunc: func(context.Context) (*mediatypes.UploadCapability, error) {
			return multipartCapability(), nil
		},
		InitiateMultipartFunc: func(context.Context, backend.InitiateRequest) (*backend.InitiateResponse, error) {
			return &backend.InitiateResponse{
				UploadID:      "u-1",
				Key:           "uploads/take1.wav",
				PresignedURLs: []backend.PresignedPart{{PartNumber: 1, URL: "https://store/p1"}},
			}, nil
		},
		PutPartFunc: func(context.Context, string, []byte) (string, error) {
			return "", &backend.StatusError{Code: 403}
		},
	}

	tracker := &testutil.RecordingTracker{}
	c := NewWithBackend(mock,
		WithLogger(testLogger()),
		WithFilesystem(memFS(t, "take1.wav", 10)),
	)

	_, err := c.UploadFile(context.Background(), "take1.wav", WithProgress(tracker))
	require.Error(t, err)
	require.Error(t, tracker.Failed)
	assert.False(t, tracker.Completed)
}
