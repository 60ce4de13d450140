package mediakit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/stemworks/mediakit/internal/backend"
	"github.com/stemworks/mediakit/internal/capability"
	"github.com/stemworks/mediakit/internal/jobs"
	"github.com/stemworks/mediakit/internal/multipart"
	"github.com/stemworks/mediakit/internal/tus"
	"github.com/stemworks/mediakit/mediatypes"
)

// Default client configuration. Backend-advertised values take precedence
// where the capability response or an initiate response supplies them.
const (
	defaultRequestTimeout   = 30 * time.Second
	defaultPartSize         = 8 * 1024 * 1024
	defaultConcurrency      = 5
	defaultPollInterval     = 1100 * time.Millisecond
	defaultPollFailureLimit = 5
)

// Client is the main entry point for media uploads and job management.
// A Client is safe for concurrent use by multiple goroutines.
type Client struct {
	api     backend.API
	planner *capability.Planner
	parts   *multipart.Uploader
	tus     *tus.Uploader
	jobs    *jobs.Registry
	cfg     mediatypes.ClientConfig
	fs      fs.Filesystem
	logger  *slog.Logger
}

// New creates a client for the backend at baseURL with the given options.
func New(baseURL string, opts ...mediatypes.Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	api, err := backend.NewClient(baseURL, cfg.HTTPClient, cfg.RequestTimeout, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return newClient(api, cfg), nil
}

// NewWithBackend creates a client over a caller-supplied backend
// implementation. Production code uses New; this constructor exists for
// wiring fakes in tests.
func NewWithBackend(api backend.API, opts ...mediatypes.Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newClient(api, cfg)
}

func newClient(api backend.API, cfg mediatypes.ClientConfig) *Client {
	parts := multipart.New(api, cfg.Logger)
	if len(cfg.RetryDelays) > 0 {
		parts.Delays = cfg.RetryDelays
	}
	return &Client{
		api:     api,
		planner: capability.NewPlanner(api, cfg.Logger),
		parts:   parts,
		tus:     tus.New(cfg.HTTPClient, cfg.Logger),
		jobs:    jobs.NewRegistry(api, cfg.Logger),
		cfg:     cfg,
		fs:      cfg.Filesystem,
		logger:  cfg.Logger,
	}
}

func defaultConfig() mediatypes.ClientConfig {
	return mediatypes.ClientConfig{
		HTTPClient:       http.DefaultClient,
		RequestTimeout:   defaultRequestTimeout,
		PartSize:         defaultPartSize,
		Concurrency:      defaultConcurrency,
		PollInterval:     defaultPollInterval,
		PollFailureLimit: defaultPollFailureLimit,
		Logger:           slog.Default(),
		Filesystem:       billy.NewOSFS("/"),
	}
}

// Capability returns the backend's advertised upload capability, fetching
// and caching it on first use. Concurrent first callers share one request.
func (c *Client) Capability(ctx context.Context) (*mediatypes.UploadCapability, error) {
	return c.planner.Discover(ctx)
}

// RefreshCapability re-fetches the capability, replacing the cached value.
func (c *Client) RefreshCapability(ctx context.Context) (*mediatypes.UploadCapability, error) {
	return c.planner.Refresh(ctx)
}

// InvalidateCapability drops the cached capability so the next call to
// Capability fetches a fresh one.
func (c *Client) InvalidateCapability() {
	c.planner.Invalidate()
}
