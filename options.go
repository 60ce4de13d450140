package mediakit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/stemworks/mediakit/mediatypes"
)

// Client options

// WithHTTPClient sets a custom HTTP client for all backend and presigned
// URL traffic.
func WithHTTPClient(httpClient *http.Client) mediatypes.Option {
	return func(c *mediatypes.ClientConfig) {
		if httpClient != nil {
			c.HTTPClient = httpClient
		}
	}
}

// WithRequestTimeout sets the per-request deadline for backend calls.
func WithRequestTimeout(timeout time.Duration) mediatypes.Option {
	return func(c *mediatypes.ClientConfig) {
		if timeout > 0 {
			c.RequestTimeout = timeout
		}
	}
}

// WithPartSize sets the default multipart part size in bytes. A part size
// advertised by the backend takes precedence.
func WithPartSize(size int64) mediatypes.Option {
	return func(c *mediatypes.ClientConfig) {
		if size > 0 {
			c.PartSize = size
		}
	}
}

// WithConcurrency sets the default number of parts uploaded in parallel.
func WithConcurrency(n int) mediatypes.Option {
	return func(c *mediatypes.ClientConfig) {
		if n > 0 {
			c.Concurrency = n
		}
	}
}

// WithRetryDelays replaces the part-upload retry schedule. The first entry
// is the wait before the first attempt; one attempt runs per entry.
func WithRetryDelays(delays []time.Duration) mediatypes.Option {
	return func(c *mediatypes.ClientConfig) {
		if len(delays) > 0 {
			c.RetryDelays = delays
		}
	}
}

// WithPollInterval sets the default delay between job status polls.
func WithPollInterval(interval time.Duration) mediatypes.Option {
	return func(c *mediatypes.ClientConfig) {
		if interval > 0 {
			c.PollInterval = interval
		}
	}
}

// WithPollFailureLimit sets how many consecutive poll failures are tolerated
// before a tracked job is reported failed.
func WithPollFailureLimit(n int) mediatypes.Option {
	return func(c *mediatypes.ClientConfig) {
		if n > 0 {
			c.PollFailureLimit = n
		}
	}
}

// WithLogger sets the structured logger used by the client.
func WithLogger(logger *slog.Logger) mediatypes.Option {
	return func(c *mediatypes.ClientConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithFilesystem sets a custom filesystem implementation for file operations.
// This is useful for testing with in-memory filesystems.
func WithFilesystem(filesystem fs.Filesystem) mediatypes.Option {
	return func(c *mediatypes.ClientConfig) {
		if filesystem != nil {
			c.Filesystem = filesystem
		}
	}
}

// Upload options

// WithContentType sets the content type sent with the upload. When unset the
// type is sniffed from the file's leading bytes.
func WithContentType(contentType string) mediatypes.UploadOption {
	return func(c *mediatypes.UploadOptionConfig) {
		c.ContentType = contentType
	}
}

// WithFilename overrides the filename reported to the backend. Defaults to
// the base name of the uploaded path.
func WithFilename(name string) mediatypes.UploadOption {
	return func(c *mediatypes.UploadOptionConfig) {
		c.Filename = name
	}
}

// WithUploadPartSize overrides the part size for one upload.
func WithUploadPartSize(size int64) mediatypes.UploadOption {
	return func(c *mediatypes.UploadOptionConfig) {
		if size > 0 {
			c.PartSize = size
		}
	}
}

// WithUploadConcurrency overrides the part concurrency for one upload.
func WithUploadConcurrency(n int) mediatypes.UploadOption {
	return func(c *mediatypes.UploadOptionConfig) {
		if n > 0 {
			c.Concurrency = n
		}
	}
}

// WithProgress attaches a progress tracker to the upload.
func WithProgress(tracker mediatypes.ProgressTracker) mediatypes.UploadOption {
	return func(c *mediatypes.UploadOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithPartCallback registers a callback invoked as each part completes.
func WithPartCallback(fn func(mediatypes.UploadPart)) mediatypes.UploadOption {
	return func(c *mediatypes.UploadOptionConfig) {
		c.OnPart = fn
	}
}

// Tracking options

// WithInterval overrides the poll interval for one tracked job.
func WithInterval(interval time.Duration) mediatypes.TrackOption {
	return func(c *mediatypes.TrackOptionConfig) {
		if interval > 0 {
			c.Interval = interval
		}
	}
}

// WithFailureLimit overrides the consecutive poll failure limit for one
// tracked job.
func WithFailureLimit(n int) mediatypes.TrackOption {
	return func(c *mediatypes.TrackOptionConfig) {
		if n > 0 {
			c.FailureLimit = n
		}
	}
}
