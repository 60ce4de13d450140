// Package multipart drives presigned multipart uploads with bounded part
// concurrency and transient-error retry.
package multipart

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/stemworks/mediakit/errors"
	"github.com/stemworks/mediakit/internal/backend"
	"github.com/stemworks/mediakit/internal/retry"
	"github.com/stemworks/mediakit/internal/session"
	"github.com/stemworks/mediakit/mediatypes"
)

const (
	defaultPartSize    = 8 * 1024 * 1024
	defaultConcurrency = 5
)

// Uploader handles multipart upload operations.
type Uploader struct {
	api    backend.API
	logger *slog.Logger

	// Delays overrides the retry ladder; tests shrink it to zero waits.
	Delays []time.Duration
}

// New creates a new multipart uploader.
func New(api backend.API, logger *slog.Logger) *Uploader {
	return &Uploader{
		api:    api,
		logger: logger,
		Delays: retry.DefaultDelays,
	}
}

// Range is one contiguous byte span of the source file.
type Range struct {
	Number int
	Offset int64
	Size   int64
}

// PartRanges splits size bytes into partSize spans. The spans partition the
// file exactly: contiguous, non-overlapping, 1-based, with the remainder in
// the last span.
func PartRanges(size, partSize int64) []Range {
	if size <= 0 || partSize <= 0 {
		return nil
	}
	n := int((size + partSize - 1) / partSize)
	ranges := make([]Range, 0, n)
	var offset int64
	for i := 1; i <= n; i++ {
		length := partSize
		if offset+length > size {
			length = size - offset
		}
		ranges = append(ranges, Range{Number: i, Offset: offset, Size: length})
		offset += length
	}
	return ranges
}

// Upload performs a full multipart upload: initiate, concurrent part PUTs,
// completion. Any fatal failure fails the session and issues the backend
// abort exactly once.
func (u *Uploader) Upload(
	ctx context.Context,
	file fs.File,
	filename string,
	size int64,
	cap *mediatypes.UploadCapability,
	cfg *mediatypes.UploadOptionConfig,
) (*mediatypes.UploadResult, error) {
	start := time.Now()

	partSize := cfg.PartSize
	if partSize <= 0 {
		partSize = cap.ChunkSize
	}
	if partSize <= 0 {
		partSize = defaultPartSize
	}

	sess := session.New(filename, size, partSize)
	stop := context.AfterFunc(ctx, sess.Cancel)
	defer stop()

	init, err := u.api.InitiateMultipart(ctx, backend.InitiateRequest{
		Filename:    filename,
		FileSize:    size,
		ContentType: cfg.ContentType,
	})
	if err != nil {
		return nil, errors.NewError("initiateMultipart", err)
	}
	if init.Metadata.ChunkSize > 0 {
		partSize = init.Metadata.ChunkSize
	}

	parts, err := plannedParts(init, size, partSize)
	if err != nil {
		return nil, err
	}
	if err := sess.SetPlan(init.Key, init.UploadID, parts); err != nil {
		return nil, err
	}
	if err := sess.Advance(mediatypes.SessionUploading); err != nil {
		return nil, err
	}
	u.logger.Debug("multipart upload planned",
		"key", init.Key, "parts", len(parts), "part_size", partSize)

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = init.Metadata.MaxConcurrent
	}
	if concurrency <= 0 {
		concurrency = cap.MaxConcurrent
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	if err := u.uploadParts(ctx, file, sess, parts, concurrency, cfg); err != nil {
		_ = sess.Advance(mediatypes.SessionFailed)
		u.abort(ctx, sess)
		if sess.Cancelled() || ctx.Err() != nil {
			return nil, errors.NewKeyError("upload", sess.Key(), errors.ErrUploadAborted)
		}
		return nil, err
	}
	if sess.Cancelled() || ctx.Err() != nil {
		_ = sess.Advance(mediatypes.SessionFailed)
		u.abort(ctx, sess)
		return nil, errors.NewKeyError("upload", sess.Key(), errors.ErrUploadAborted)
	}

	if err := sess.Advance(mediatypes.SessionCompleting); err != nil {
		return nil, err
	}
	res, err := u.complete(ctx, sess)
	if err != nil {
		_ = sess.Advance(mediatypes.SessionFailed)
		u.abort(ctx, sess)
		return nil, err
	}
	_ = sess.Advance(mediatypes.SessionCompleted)

	if cfg.ProgressTracker != nil {
		cfg.ProgressTracker.Complete()
	}
	return &mediatypes.UploadResult{
		Key:      res.Key,
		Location: res.URL,
		ETag:     res.ETag,
		Size:     size,
		Method:   mediatypes.MethodS3Multipart,
		Duration: time.Since(start),
	}, nil
}

// plannedParts joins the computed ranges with the presigned URLs from the
// initiate response. The URL count must match the part count.
func plannedParts(init *backend.InitiateResponse, size, partSize int64) ([]mediatypes.UploadPart, error) {
	ranges := PartRanges(size, partSize)
	if len(init.PresignedURLs) != len(ranges) {
		return nil, errors.NewKeyError("initiateMultipart", init.Key, errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("backend returned %d presigned urls for %d parts",
				len(init.PresignedURLs), len(ranges)))
	}
	urls := make(map[int]string, len(init.PresignedURLs))
	for _, p := range init.PresignedURLs {
		urls[p.PartNumber] = p.URL
	}
	parts := make([]mediatypes.UploadPart, len(ranges))
	for i, r := range ranges {
		url, ok := urls[r.Number]
		if !ok {
			return nil, errors.NewKeyError("initiateMultipart", init.Key, errors.ErrInvalidInput).
				WithMessage(fmt.Sprintf("missing presigned url for part %d", r.Number))
		}
		parts[i] = mediatypes.UploadPart{Number: r.Number, Offset: r.Offset, Size: r.Size, URL: url}
	}
	return parts, nil
}

// uploadParts runs all part uploads through a semaphore of size concurrency.
// As soon as any in-flight part finishes, the next pending part starts; the
// first failure cancels everything still in flight.
func (u *Uploader) uploadParts(
	ctx context.Context,
	file fs.File,
	sess *session.Session,
	parts []mediatypes.UploadPart,
	concurrency int,
	cfg *mediatypes.UploadOptionConfig,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, concurrency)
	results := make(chan error, len(parts))

	var wg sync.WaitGroup
	for _, part := range parts {
		wg.Add(1)
		go func(p mediatypes.UploadPart) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- ctx.Err()
				return
			}
			defer func() { <-sem }()
			results <- u.uploadPart(ctx, file, sess, p, cfg)
		}(part)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for err := range results {
		if err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}

// uploadPart reads one byte range and PUTs it to the part's presigned URL,
// retrying transient failures through the delay ladder.
func (u *Uploader) uploadPart(
	ctx context.Context,
	file fs.File,
	sess *session.Session,
	part mediatypes.UploadPart,
	cfg *mediatypes.UploadOptionConfig,
) error {
	if sess.Cancelled() {
		return errors.NewKeyError("uploadPart", sess.Key(), errors.ErrUploadAborted)
	}

	buf := make([]byte, part.Size)
	if _, err := file.ReadAt(buf, part.Offset); err != nil && err != io.EOF {
		return errors.NewKeyError("uploadPart", sess.Key(), err)
	}

	var etag string
	err := retry.Do(ctx, u.Delays, func() error {
		if sess.Cancelled() {
			return errors.NewKeyError("uploadPart", sess.Key(), errors.ErrUploadAborted)
		}
		tag, err := u.api.PutPart(ctx, part.URL, buf)
		if err != nil {
			u.logger.Debug("part upload attempt failed",
				"key", sess.Key(), "part", part.Number, "err", err)
			return err
		}
		etag = tag
		return nil
	})
	if err != nil {
		return errors.NewKeyError("uploadPart", sess.Key(),
			fmt.Errorf("%w: part %d: %w", errors.ErrPartUpload, part.Number, err))
	}

	if err := sess.MarkCompleted(part.Number, etag); err != nil {
		return err
	}
	part.ETag = etag
	if cfg.OnPart != nil {
		cfg.OnPart(part)
	}
	if cfg.ProgressTracker != nil {
		done, total := sess.Progress()
		cfg.ProgressTracker.Update(done, total)
	}
	return nil
}

// complete submits the ordered (part_number, etag) list.
func (u *Uploader) complete(ctx context.Context, sess *session.Session) (*backend.CompleteResult, error) {
	parts := sess.CompletedParts()
	completed := make([]backend.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = backend.CompletedPart{PartNumber: p.Number, ETag: p.ETag}
	}
	res, err := u.api.CompleteMultipart(ctx, backend.CompleteRequest{
		Key:      sess.Key(),
		UploadID: sess.UploadID(),
		Parts:    completed,
	})
	if err != nil {
		return nil, errors.NewKeyError("completeMultipart", sess.Key(),
			fmt.Errorf("%w: %w", errors.ErrCompletion, err))
	}
	return res, nil
}

// abort releases server-side state at most once per session. The call
// proceeds even when the surrounding context is already cancelled.
func (u *Uploader) abort(ctx context.Context, sess *session.Session) {
	_ = sess.AbortOnce(func() error {
		abortCtx := context.WithoutCancel(ctx)
		if err := u.api.AbortMultipart(abortCtx, sess.Key(), sess.UploadID()); err != nil {
			u.logger.Warn("multipart abort failed", "key", sess.Key(), "err", err)
			return err
		}
		_ = sess.Advance(mediatypes.SessionAborted)
		return nil
	})
}
