package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/stemworks/mediakit/errors"
	"github.com/stemworks/mediakit/mediatypes"
)

const updateBuffer = 8

// tracker polls one job until it reaches a terminal state. Each loop
// iteration issues one status request, emits the snapshot, and waits the
// inter-poll delay. Transient poll failures are tolerated until they occur
// failLimit times in a row.
type tracker struct {
	id        string
	kind      mediatypes.JobKind
	registry  *Registry
	interval  time.Duration
	failLimit int
	updates   chan mediatypes.JobSnapshot
	cancelled atomic.Bool
	stop      context.CancelFunc
}

func newTracker(id string, kind mediatypes.JobKind, r *Registry, stop context.CancelFunc, cfg *mediatypes.TrackOptionConfig) *tracker {
	return &tracker{
		id:        id,
		kind:      kind,
		registry:  r,
		interval:  cfg.Interval,
		failLimit: cfg.FailureLimit,
		updates:   make(chan mediatypes.JobSnapshot, updateBuffer),
		stop:      stop,
	}
}

// cancel raises the cancellation flag and interrupts any in-progress wait.
func (t *tracker) cancel() {
	t.cancelled.Store(true)
	t.stop()
}

func (t *tracker) run(ctx context.Context) {
	defer close(t.updates)
	defer t.registry.drop(t.id)
	defer t.stop()

	failures := 0
	for {
		snap, err := t.registry.api.JobStatus(ctx, t.id)

		// The flag is checked before any state commit so a response that was
		// already in flight when cancel hit can never surface.
		if t.cancelled.Load() || ctx.Err() != nil {
			return
		}

		switch {
		case err != nil:
			failures++
			if failures >= t.failLimit {
				// Poll exhaustion, not a backend verdict: the snapshot is
				// delivered to the caller but never stored, so the registry
				// keeps the last state the backend actually reported.
				t.deliver(ctx, mediatypes.JobSnapshot{
					ID:    t.id,
					Kind:  t.kind,
					State: mediatypes.JobFailed,
					Error: fmt.Sprintf("%v", errors.NewJobError("pollJob", t.id,
						fmt.Errorf("%w: %d consecutive failures: %v", errors.ErrJobPoll, failures, err))),
					PollFailed: true,
					Observed:   time.Now(),
				})
				return
			}
			t.registry.logger.Debug("job poll failed",
				"job", t.id, "failures", failures, "err", err)
		default:
			failures = 0
			snap.Kind = t.kind
			if snap.State == mediatypes.JobSucceeded && snap.Result != nil && t.kind != "" {
				if derr := snap.Result.Decode(t.kind); derr != nil {
					t.registry.logger.Warn("job result decode failed", "job", t.id, "err", derr)
				}
			}
			if !t.emit(ctx, *snap) {
				return
			}
			if snap.State.Terminal() {
				return
			}
		}

		select {
		case <-time.After(t.interval):
		case <-ctx.Done():
			return
		}
	}
}

// emit stores and delivers snap unless tracking was cancelled first.
// Returns false when the loop should stop without further emissions.
func (t *tracker) emit(ctx context.Context, snap mediatypes.JobSnapshot) bool {
	if t.cancelled.Load() {
		return false
	}
	t.registry.store(snap)
	return t.deliver(ctx, snap)
}

// deliver sends snap to the update channel without recording it.
func (t *tracker) deliver(ctx context.Context, snap mediatypes.JobSnapshot) bool {
	if t.cancelled.Load() {
		return false
	}
	select {
	case t.updates <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}
