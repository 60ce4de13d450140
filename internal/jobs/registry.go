// Package jobs tracks submitted jobs to completion by polling the backend,
// one independent cancellable loop per job id.
package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stemworks/mediakit/errors"
	"github.com/stemworks/mediakit/internal/backend"
	"github.com/stemworks/mediakit/mediatypes"
)

// Registry holds the latest snapshot per tracked job id and composes the
// polling tasks. Snapshot access is safe from any goroutine; trackers never
// block each other.
type Registry struct {
	api    backend.API
	logger *slog.Logger

	mu        sync.RWMutex
	snapshots map[string]mediatypes.JobSnapshot
	trackers  map[string]*tracker
	kinds     map[string]mediatypes.JobKind
}

// NewRegistry creates an empty registry over the given backend.
func NewRegistry(api backend.API, logger *slog.Logger) *Registry {
	return &Registry{
		api:       api,
		logger:    logger,
		snapshots: make(map[string]mediatypes.JobSnapshot),
		trackers:  make(map[string]*tracker),
		kinds:     make(map[string]mediatypes.JobKind),
	}
}

// Remember records the kind of a submitted job so its result payload can be
// decoded once tracking observes success.
func (r *Registry) Remember(id string, kind mediatypes.JobKind) {
	r.mu.Lock()
	r.kinds[id] = kind
	r.mu.Unlock()
}

// Snapshot returns the latest observed snapshot for id.
func (r *Registry) Snapshot(id string) (mediatypes.JobSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[id]
	return snap, ok
}

// Jobs returns the ids known to the registry.
func (r *Registry) Jobs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.snapshots))
	for id := range r.snapshots {
		ids = append(ids, id)
	}
	return ids
}

// Track starts an independent polling loop for id and returns its snapshot
// stream. The channel closes after a terminal snapshot, cancellation, or
// context expiry. Tracking an id twice is an error.
func (r *Registry) Track(ctx context.Context, id string, cfg *mediatypes.TrackOptionConfig) (<-chan mediatypes.JobSnapshot, error) {
	if id == "" {
		return nil, errors.NewError("trackJob", errors.ErrInvalidInput).
			WithMessage("empty job id")
	}
	r.mu.Lock()
	if _, exists := r.trackers[id]; exists {
		r.mu.Unlock()
		return nil, errors.NewJobError("trackJob", id, errors.ErrInvalidInput).
			WithMessage("job already tracked")
	}
	ctx, cancel := context.WithCancel(ctx)
	t := newTracker(id, r.kinds[id], r, cancel, cfg)
	r.trackers[id] = t
	r.mu.Unlock()

	go t.run(ctx)
	return t.updates, nil
}

// Cancel stops the polling loop for id. The tracker's cancellation flag is
// checked before every state update, so no snapshot lands after it is set.
func (r *Registry) Cancel(id string) {
	r.mu.RLock()
	t := r.trackers[id]
	r.mu.RUnlock()
	if t != nil {
		t.cancel()
	}
}

// store records snap unless a terminal snapshot is already present;
// terminal states are immutable once reached.
func (r *Registry) store(snap mediatypes.JobSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.snapshots[snap.ID]; ok && prev.State.Terminal() {
		return
	}
	r.snapshots[snap.ID] = snap
}

// drop detaches a finished tracker, keeping the last snapshot.
func (r *Registry) drop(id string) {
	r.mu.Lock()
	delete(r.trackers, id)
	r.mu.Unlock()
}
