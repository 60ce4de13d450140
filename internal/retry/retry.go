// Package retry classifies transport failures and drives the bounded delay
// ladder used for part uploads.
package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/stemworks/mediakit/internal/backend"
)

// DefaultDelays is the delay ladder applied across attempts. The leading
// zero is the immediate first attempt; each later entry is the wait before
// the next one. Five attempts total.
var DefaultDelays = []time.Duration{
	0,
	3 * time.Second,
	5 * time.Second,
	10 * time.Second,
	20 * time.Second,
}

// ladder is a backoff.BackOff stepping through a fixed delay schedule.
type ladder struct {
	delays []time.Duration
	next   int
}

// NextBackOff returns the wait before the next attempt. The first entry is
// consumed by the immediate initial attempt, so stepping starts at index 1.
func (l *ladder) NextBackOff() time.Duration {
	l.next++
	if l.next >= len(l.delays) {
		return backoff.Stop
	}
	return l.delays[l.next]
}

// Reset rewinds the ladder to the first attempt.
func (l *ladder) Reset() {
	l.next = 0
}

// New returns the delay ladder as a context-bound backoff policy.
func New(ctx context.Context, delays []time.Duration) backoff.BackOff {
	if len(delays) == 0 {
		delays = DefaultDelays
	}
	return backoff.WithContext(&ladder{delays: delays}, ctx)
}

// Do runs op through the ladder, retrying transient failures only.
// Non-transient failures stop immediately.
func Do(ctx context.Context, delays []time.Duration, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, New(ctx, delays))
}

// Transient reports whether err is worth retrying: 5xx and 429 responses
// and transport-level failures. Context cancellation and every other HTTP
// status are permanent.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *backend.StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}
