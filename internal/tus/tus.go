// Package tus streams files to a tusd endpoint over the resumable tus
// protocol.
package tus

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bdragon300/tusgo"

	"github.com/stemworks/mediakit/errors"
	"github.com/stemworks/mediakit/mediatypes"
)

// Uploader drives tus uploads against the endpoint advertised by capability
// discovery.
type Uploader struct {
	http   *http.Client
	logger *slog.Logger
}

// New creates a tus uploader using the given HTTP client.
func New(httpClient *http.Client, logger *slog.Logger) *Uploader {
	return &Uploader{
		http:   httpClient,
		logger: logger,
	}
}

// Upload creates a remote upload and streams the file in chunk-sized writes.
// The returned Location is the stable reference used for job submission.
func (u *Uploader) Upload(
	ctx context.Context,
	r io.Reader,
	filename string,
	size int64,
	cap *mediatypes.UploadCapability,
	cfg *mediatypes.UploadOptionConfig,
) (*mediatypes.UploadResult, error) {
	start := time.Now()

	base, err := url.Parse(cap.Endpoint)
	if err != nil {
		return nil, errors.NewError("tusUpload", err).WithMessage("invalid tus endpoint")
	}

	client := tusgo.NewClient(u.http, base).WithContext(ctx)

	meta := map[string]string{"filename": filename}
	if cfg.ContentType != "" {
		meta["filetype"] = cfg.ContentType
	}
	upload := tusgo.Upload{}
	if _, err := client.CreateUpload(&upload, size, false, meta); err != nil {
		return nil, errors.NewError("tusCreate", err)
	}
	u.logger.Debug("tus upload created", "location", upload.Location, "size", size)

	stream := tusgo.NewUploadStream(client, &upload)
	if cap.ChunkSize > 0 {
		stream.ChunkSize = cap.ChunkSize
	}

	src := r
	if cfg.ProgressTracker != nil {
		src = &progressReader{r: r, total: size, tracker: cfg.ProgressTracker}
	}
	if _, err := io.Copy(stream, src); err != nil {
		return nil, errors.NewError("tusUpload", err)
	}
	if cfg.ProgressTracker != nil {
		cfg.ProgressTracker.Complete()
	}

	return &mediatypes.UploadResult{
		Location: absoluteLocation(base, upload.Location),
		Size:     size,
		Method:   mediatypes.MethodTus,
		Duration: time.Since(start),
	}, nil
}

// absoluteLocation resolves a possibly relative upload location against the
// tus endpoint.
func absoluteLocation(base *url.URL, location string) string {
	if strings.Contains(location, "://") {
		return location
	}
	ref, err := url.Parse(location)
	if err != nil {
		return location
	}
	return base.ResolveReference(ref).String()
}

// progressReader reports aggregate bytes read to a progress tracker.
type progressReader struct {
	r       io.Reader
	total   int64
	read    int64
	tracker mediatypes.ProgressTracker
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.tracker.Update(p.read, p.total)
	}
	return n, err
}
