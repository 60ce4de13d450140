// Package capability discovers and caches the backend's advertised upload
// protocol.
package capability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/stemworks/mediakit/errors"
	"github.com/stemworks/mediakit/internal/backend"
	"github.com/stemworks/mediakit/mediatypes"
)

// Planner resolves the upload capability once per process lifetime.
// Concurrent first callers share a single in-flight discovery request; a
// failed discovery is not cached, so the next caller retries.
type Planner struct {
	api    backend.API
	logger *slog.Logger
	group  singleflight.Group

	mu     sync.RWMutex
	cached *mediatypes.UploadCapability
}

// NewPlanner creates a planner over the given backend.
func NewPlanner(api backend.API, logger *slog.Logger) *Planner {
	return &Planner{
		api:    api,
		logger: logger,
	}
}

// Discover returns the cached capability, fetching it on first use.
func (p *Planner) Discover(ctx context.Context) (*mediatypes.UploadCapability, error) {
	p.mu.RLock()
	cached := p.cached
	p.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	return p.fetch(ctx)
}

// Refresh re-fetches the capability, replacing any cached value.
func (p *Planner) Refresh(ctx context.Context) (*mediatypes.UploadCapability, error) {
	p.Invalidate()
	return p.fetch(ctx)
}

// Invalidate drops the cached capability so the next Discover re-fetches.
func (p *Planner) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

func (p *Planner) fetch(ctx context.Context) (*mediatypes.UploadCapability, error) {
	v, err, _ := p.group.Do("capability", func() (any, error) {
		cap, err := p.api.DiscoverCapability(ctx)
		if err != nil {
			return nil, errors.NewError("discoverCapability",
				fmt.Errorf("%w: %w", errors.ErrCapabilityDiscovery, err))
		}
		p.mu.Lock()
		p.cached = cap
		p.mu.Unlock()
		p.logger.Debug("upload capability discovered",
			"method", cap.Method, "chunk_size", cap.ChunkSize, "max_concurrent", cap.MaxConcurrent)
		return cap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*mediatypes.UploadCapability), nil
}
