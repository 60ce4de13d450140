package mediakit

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/stemworks/mediakit/errors"
	"github.com/stemworks/mediakit/mediatypes"
)

// UploadFile uploads the file at path over the protocol the backend
// advertises. Multipart uploads run parts concurrently and clean up
// server-side state on failure; tus uploads stream sequentially. The
// returned result's Location is the reference to pass to job submissions.
func (c *Client) UploadFile(ctx context.Context, path string, opts ...mediatypes.UploadOption) (*mediatypes.UploadResult, error) {
	cfg := mediatypes.UploadOptionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	result, err := c.uploadFile(ctx, path, &cfg)
	if err != nil && cfg.ProgressTracker != nil {
		cfg.ProgressTracker.Error(err)
	}
	return result, err
}

func (c *Client) uploadFile(ctx context.Context, path string, cfg *mediatypes.UploadOptionConfig) (*mediatypes.UploadResult, error) {
	info, err := c.fs.Stat(path)
	if err != nil {
		return nil, errors.NewError("uploadFile", err).WithMessage("stat file")
	}
	if info.IsDir() {
		return nil, errors.NewError("uploadFile", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("%s is a directory", path))
	}
	size := info.Size()
	if size <= 0 {
		return nil, errors.NewError("uploadFile", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("%s is empty", path))
	}

	if cfg.Filename == "" {
		cfg.Filename = filepath.Base(path)
	}

	file, err := c.fs.Open(path)
	if err != nil {
		return nil, errors.NewError("uploadFile", err).WithMessage("open file")
	}
	defer file.Close()

	if cfg.ContentType == "" {
		if mt, err := mimetype.DetectReader(file); err == nil {
			cfg.ContentType = mt.String()
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, errors.NewError("uploadFile", err).WithMessage("rewind after sniff")
		}
	}

	cap, err := c.planner.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if cap.MaxSize > 0 && size > cap.MaxSize {
		return nil, errors.NewError("uploadFile", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("file size %d exceeds backend limit %d", size, cap.MaxSize))
	}

	// Explicit upload options win, then backend-advertised tuning, then the
	// client defaults.
	if cfg.PartSize <= 0 {
		cfg.PartSize = cap.ChunkSize
	}
	if cfg.PartSize <= 0 {
		cfg.PartSize = c.cfg.PartSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = cap.MaxConcurrent
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = c.cfg.Concurrency
	}

	if cap.Method == mediatypes.MethodS3Multipart && cap.MultipartSupported {
		return c.parts.Upload(ctx, file, cfg.Filename, size, cap, cfg)
	}
	return c.tus.Upload(ctx, file, cfg.Filename, size, cap, cfg)
}
